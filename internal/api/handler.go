package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/humanitylink/go-wash-reports/internal/dispatch"
	"github.com/humanitylink/go-wash-reports/internal/models"
	"github.com/humanitylink/go-wash-reports/internal/nudge"
	"github.com/humanitylink/go-wash-reports/internal/reconcile"
	"github.com/humanitylink/go-wash-reports/internal/repository"
	"github.com/humanitylink/go-wash-reports/internal/risk"
	"github.com/humanitylink/go-wash-reports/internal/smscodec"
	"github.com/humanitylink/go-wash-reports/internal/stream"
)

type Handler struct {
	repo       repository.ReportStore
	volunteers repository.VolunteerStore
	ctrl       *reconcile.Controller
	dispatcher *dispatch.Dispatcher
	feed       *stream.Broadcaster
	now        func() time.Time
}

func NewHandler(repo repository.ReportStore, volunteers repository.VolunteerStore, ctrl *reconcile.Controller, dispatcher *dispatch.Dispatcher, feed *stream.Broadcaster) *Handler {
	return &Handler{
		repo:       repo,
		volunteers: volunteers,
		ctrl:       ctrl,
		dispatcher: dispatcher,
		feed:       feed,
		now:        time.Now,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/api/reports", h.listReports)
	r.GET("/api/reports/feed", h.reportFeed)
	r.GET("/api/reports/:id", h.getReport)
	r.POST("/api/reports", h.submitReport)
	r.POST("/api/reports/:id/resolution", h.resolveConflict)
	r.POST("/api/reports/:id/nudge", h.nudgeReport)
	r.PATCH("/api/reports/:id/status", h.updateStatus)
	r.POST("/api/sms/inbound", h.inboundSMS)
	r.POST("/api/volunteers/:id/remind", h.remindVolunteer)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) submitReport(c *gin.Context) {
	var obs models.Observation
	if err := c.ShouldBindJSON(&obs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid observation payload"})
		return
	}

	result, err := h.dispatcher.Submit(c.Request.Context(), &obs)
	if err != nil {
		if errors.Is(err, reconcile.ErrInvalidObservation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit report"})
		return
	}

	switch {
	case result.Conflict != nil:
		c.JSON(http.StatusConflict, gin.H{
			"conflict": result.Conflict,
			"options":  []string{"update", "new", "escalate"},
		})
	case result.Offline():
		c.JSON(http.StatusAccepted, gin.H{
			"report":   result.Report,
			"fallback": result.Fallback,
		})
	default:
		c.JSON(http.StatusCreated, gin.H{"report": result.Report})
	}
}

type resolutionRequest struct {
	Action      string              `json:"action"`
	Observation *models.Observation `json:"observation,omitempty"`
	UserID      string              `json:"user_id,omitempty"`
}

func (h *Handler) resolveConflict(c *gin.Context) {
	existingID := c.Param("id")

	var req resolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid resolution payload"})
		return
	}

	ctx := c.Request.Context()
	switch req.Action {
	case "update":
		if req.Observation == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "update requires an observation"})
			return
		}
		report, err := h.ctrl.UpdateExisting(ctx, existingID, req.Observation)
		if err != nil {
			h.resolutionError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"report": report})
	case "new":
		if req.Observation == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "new requires an observation"})
			return
		}
		report, err := h.ctrl.SubmitNew(ctx, existingID, req.Observation)
		if err != nil {
			h.resolutionError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"report": report})
	case "escalate":
		if req.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "escalate requires a user_id"})
			return
		}
		h.escalate(c, existingID, req.UserID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be update, new or escalate"})
	}
}

func (h *Handler) resolutionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
	case errors.Is(err, reconcile.ErrInvalidObservation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve conflict"})
	}
}

type nudgeRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) nudgeReport(c *gin.Context) {
	var req nudgeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	h.escalate(c, c.Param("id"), req.UserID)
}

// escalate runs the throttled nudge and maps its three outcomes: done,
// already-done-today, unknown report.
func (h *Handler) escalate(c *gin.Context, reportID, userID string) {
	err := h.ctrl.Escalate(c.Request.Context(), reportID, userID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"nudged": true})
	case errors.Is(err, nudge.ErrThrottled):
		c.JSON(http.StatusConflict, gin.H{
			"nudged": false,
			"error":  "you have already nudged this report today",
		})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to nudge report"})
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status payload"})
		return
	}

	status, ok := parseStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	err := h.ctrl.AdvanceStatus(c.Request.Context(), c.Param("id"), status)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": status})
	case errors.Is(err, reconcile.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
	}
}

func (h *Handler) getReport(c *gin.Context) {
	report, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) listReports(c *gin.Context) {
	filter := repository.Filter{
		Limit: 20, // Default to 20 reports if limit param not supplied
	}

	if z := c.Query("zone"); z != "" {
		filter.Zone = z
	}
	if k := c.Query("kind"); k != "" {
		if kind, ok := parseKind(k); ok {
			filter.Kind = &kind
		}
	}
	if s := c.Query("status"); s != "" {
		if status, ok := parseStatus(s); ok {
			filter.Status = &status
		}
	}
	if p := c.Query("min_priority"); p != "" {
		if priority, ok := parsePriority(p); ok {
			filter.MinPriority = &priority
		}
	}
	if c.Query("active") == "true" {
		filter.ActiveOnly = true
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}

	reports, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// reportFeed streams report changes as server-sent events until the
// client disconnects.
func (h *Handler) reportFeed(c *gin.Context) {
	id, ch := h.feed.Subscribe()
	defer h.feed.Unsubscribe(id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Kind), event.Report)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

type inboundSMSRequest struct {
	From string `json:"from"`
	Body string `json:"body"`
}

// inboundSMS is the receiving side of the fallback channel: structured
// WASH messages are decoded and re-enter the normal reconciliation path;
// anything else goes through the loose keyword parser. The response body
// is the reply text for the sender.
func (h *Handler) inboundSMS(c *gin.Context) {
	var req inboundSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and body are required"})
		return
	}

	reply := h.processSMS(c, strings.TrimSpace(req.Body), req.From)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (h *Handler) processSMS(c *gin.Context, text, from string) string {
	// Gateways sometimes strip the WASH header before forwarding.
	if parts := strings.Fields(text); len(parts) >= 3 {
		candidate := text
		if !strings.HasPrefix(strings.ToUpper(candidate), "WASH") {
			candidate = "WASH " + candidate
		}
		if obs, err := smscodec.Decode(candidate); err == nil {
			return h.submitDecoded(c, obs, from,
				fmt.Sprintf("SMS PROCESSED: %s", obs.FacilityID))
		}
	}

	obs, err := smscodec.ParseFreeText(text)
	if err != nil {
		return "ERR: " + err.Error()
	}

	reply := fmt.Sprintf("SMS RECEIVED. Logged report for %s.", obs.FacilityID)
	if risk.NoteUrgency(text) == risk.UrgencyCritical {
		// Keep the flag on the record, not just in the reply.
		obs.Notes = strings.TrimSpace(obs.Notes + " Urgent keywords in message.")
		reply += " Marked urgent."
	}
	return h.submitDecoded(c, obs, from, reply)
}

func (h *Handler) submitDecoded(c *gin.Context, obs *models.Observation, from, okReply string) string {
	ctx := c.Request.Context()

	outcome, err := h.ctrl.Submit(ctx, obs)
	if err != nil {
		return "ERR: could not process report, try again"
	}

	if outcome.Conflict != nil {
		// An active report already exists; treat the message as an
		// escalation from the sender.
		switch err := h.ctrl.Escalate(ctx, outcome.Conflict.ID, from); {
		case err == nil:
			return fmt.Sprintf("REPORT EXISTS for %s (status %s). Priority raised.",
				obs.FacilityID, outcome.Conflict.Status)
		case errors.Is(err, nudge.ErrThrottled):
			return fmt.Sprintf("REPORT EXISTS for %s. You already raised it today.", obs.FacilityID)
		default:
			return "ERR: could not process report, try again"
		}
	}

	return fmt.Sprintf("%s - Risk: %d %s",
		okReply, outcome.Report.Assessment.Score, outcome.Report.Assessment.Priority)
}

type remindRequest struct {
	SenderID string `json:"sender_id"`
	Message  string `json:"message,omitempty"`
}

// remindVolunteer applies the "submit your daily log" reminder under the
// same one-per-sender-per-day throttle as report nudges.
func (h *Handler) remindVolunteer(c *gin.Context) {
	var req remindRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SenderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sender_id is required"})
		return
	}
	if req.Message == "" {
		req.Message = "Please submit your daily field log"
	}

	ctx := c.Request.Context()
	volunteer, err := h.volunteers.GetVolunteer(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "volunteer not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load volunteer"})
		return
	}

	reminders, err := nudge.Remind(volunteer.Reminders, req.SenderID, req.Message, h.now())
	if errors.Is(err, nudge.ErrThrottled) {
		c.JSON(http.StatusConflict, gin.H{
			"reminded": false,
			"error":    "volunteer was already reminded today",
		})
		return
	}

	volunteer.Reminders = reminders
	if err := h.volunteers.PutVolunteer(ctx, volunteer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save reminder"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminded": true})
}

func parseKind(s string) (models.FacilityKind, bool) {
	switch strings.ToLower(s) {
	case "toilet":
		return models.FacilityToilet, true
	case "water_point", "waterpoint":
		return models.FacilityWaterPoint, true
	default:
		return "", false
	}
}

func parseStatus(s string) (models.ReportStatus, bool) {
	switch strings.ToLower(s) {
	case "pending":
		return models.StatusPending, true
	case "acknowledged":
		return models.StatusAcknowledged, true
	case "inprogress", "in_progress":
		return models.StatusInProgress, true
	case "resolved":
		return models.StatusResolved, true
	case "archived":
		return models.StatusArchived, true
	default:
		return "", false
	}
}

func parsePriority(s string) (models.Priority, bool) {
	switch strings.ToLower(s) {
	case "low":
		return models.PriorityLow, true
	case "medium":
		return models.PriorityMedium, true
	case "high":
		return models.PriorityHigh, true
	case "critical":
		return models.PriorityCritical, true
	default:
		return "", false
	}
}
