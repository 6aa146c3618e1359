package smscodec

import (
	"fmt"
	"strings"

	"github.com/humanitylink/go-wash-reports/internal/models"
)

// ParseFreeText handles the loose fallback format senders use when they
// don't know the compact grammar:
//
//	<facilityId> <KEYWORD ...>
//
// W-prefixed facility ids are water points, everything else is a toilet.
// Keywords map to a best-effort observation with mid/low severity
// defaults. An unmatched keyword set returns ErrUnknownCommand so the
// sender gets actionable feedback instead of silence.
func ParseFreeText(text string) (*models.Observation, error) {
	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: use <facilityId> <STATUS>", ErrMalformed)
	}

	facilityID := parts[0]
	command := strings.ToUpper(strings.Join(parts[1:], " "))

	obs := &models.Observation{
		Zone:        "Unknown",
		FacilityID:  facilityID,
		UsersPerDay: models.UsageUnder25,
	}

	if strings.HasPrefix(strings.ToUpper(facilityID), "W") {
		obs.Kind = models.FacilityWaterPoint
		return obs, parseWaterPointCommand(obs, command)
	}
	obs.Kind = models.FacilityToilet
	return obs, parseToiletCommand(obs, command)
}

func parseToiletCommand(obs *models.Observation, command string) error {
	t := &models.ToiletDetails{}
	obs.Toilet = t

	switch {
	case containsAny(command, "BROKEN", "UNUSABLE"):
		obs.Functional = models.FunctionalNo
	case containsAny(command, "LEAK"):
		obs.Functional = models.FunctionalLimited
		obs.Notes = "Water leak in facility"
	case containsAny(command, "NO-SOAP"):
		obs.Functional = models.FunctionalYes
		t.Soap = newBool(false)
	case containsAny(command, "DIRTY", "MESSY"):
		obs.Functional = models.FunctionalLimited
		obs.Notes = "Dirty condition reported via SMS"
	case containsAny(command, "DARK", "NO-LIGHT"):
		obs.Functional = models.FunctionalYes
		t.Lighting = newBool(false)
	case containsAny(command, "OK"):
		obs.Functional = models.FunctionalYes
		t.Soap = newBool(true)
	default:
		return fmt.Errorf("%w %q: try BROKEN, NO-SOAP, DIRTY", ErrUnknownCommand, command)
	}
	return nil
}

func parseWaterPointCommand(obs *models.Observation, command string) error {
	w := &models.WaterPointDetails{}
	obs.WaterPoint = w

	switch {
	case containsAny(command, "BROKEN", "NO-WATER"):
		obs.Functional = models.FunctionalNo
		w.Availability = models.WaterNone
	case containsAny(command, "DIRTY", "SMELLY"):
		obs.Functional = models.FunctionalYes
		w.Quality = models.QualityDirty
	case containsAny(command, "LEAK"):
		// A leak implies water is still flowing.
		obs.Functional = models.FunctionalYes
		obs.Notes = "Leak reported via SMS"
	case containsAny(command, "OK"):
		obs.Functional = models.FunctionalYes
		w.Availability = models.WaterYes
		w.Quality = models.QualityClear
	default:
		return fmt.Errorf("%w %q: try BROKEN, DIRTY, LEAK", ErrUnknownCommand, command)
	}
	return nil
}

func containsAny(command string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(command, kw) {
			return true
		}
	}
	return false
}

func newBool(b bool) *bool { return &b }
