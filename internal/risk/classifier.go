// Package risk turns a field observation into a bounded score and a
// discrete priority. Classification is pure and total: missing optional
// answers contribute nothing, and no input can make it fail.
package risk

import (
	"math"

	"github.com/humanitylink/go-wash-reports/internal/models"
)

// Score thresholds for priority classification.
const (
	thresholdCritical = 75
	thresholdHigh     = 50
	thresholdMedium   = 25
)

type scorer struct {
	base      float64
	mult      float64
	reasoning []string
}

func (s *scorer) add(points float64, reason string) {
	s.base += points
	s.reasoning = append(s.reasoning, reason)
}

func (s *scorer) amplify(factor float64, reason string) {
	s.mult *= factor
	s.reasoning = append(s.reasoning, reason)
}

// Classify scores an observation for the given facility kind. The base
// score branches on the functional-state gate, then crowding and
// vulnerable-group multipliers compound on top, then the result is rounded
// and clamped to [0,100].
func Classify(kind models.FacilityKind, obs *models.Observation) models.RiskAssessment {
	s := &scorer{mult: 1.0}

	switch obs.Functional {
	case models.FunctionalNo:
		s.add(50, "Facility fully non-functional")
		if kind == models.FacilityToilet {
			scoreToiletFailure(s, obs.Toilet)
		} else {
			scoreWaterPointFailure(s, obs.WaterPoint)
		}
	case models.FunctionalLimited:
		s.add(25, "Facility partially functional")
		if kind == models.FacilityToilet {
			scoreToiletLimited(s, obs.Toilet)
		} else {
			scoreWaterPointLimited(s, obs.WaterPoint)
		}
	case models.FunctionalYes:
		if kind == models.FacilityToilet {
			scoreToiletWorking(s, obs.Toilet)
		} else {
			scoreWaterPointWorking(s, obs.WaterPoint)
		}
	}

	applyMultipliers(s, kind, obs)

	score := int(math.Round(s.base * s.mult))
	if score > 100 {
		score = 100
	}

	return models.RiskAssessment{
		Score:     score,
		Priority:  priorityFor(score),
		Reasoning: s.reasoning,
	}
}

func scoreToiletFailure(s *scorer, t *models.ToiletDetails) {
	if t == nil {
		return
	}
	structural := false
	for _, reason := range t.ReasonsUnusable {
		switch reason {
		case models.ToiletNoWater:
			s.add(10, "No water at facility")
		case models.ToiletBlocked:
			s.add(10, "Facility completely blocked")
		case models.ToiletCollapsed, models.ToiletSafetyRisk:
			// Structural and safety failures score once, combined.
			if !structural {
				s.add(20, "Structural damage or safety risk")
				structural = true
			}
		}
	}
	if t.AlternativeNearby == models.ChoiceNo {
		s.add(15, "No alternative facility reachable")
	}
}

func scoreToiletLimited(s *scorer, t *models.ToiletDetails) {
	if t == nil {
		return
	}
	switch t.Water {
	case models.WaterLimited:
		s.add(10, "Limited water supply")
	case models.WaterNone:
		s.add(20, "No water available")
	}
	if t.Lighting != nil && !*t.Lighting {
		s.add(8, "No lighting - safety risk at night")
	}
	if t.Lock != nil && !*t.Lock {
		s.add(7, "No lock - privacy concern")
	}
	if t.Soap != nil && !*t.Soap {
		s.add(10, "No soap available")
	}
	for _, issue := range t.Issues {
		if issue == models.IssueLongWait {
			s.add(8, "Long waiting times")
		}
	}
}

func scoreToiletWorking(s *scorer, t *models.ToiletDetails) {
	if t == nil {
		return
	}
	switch t.Water {
	case models.WaterNone:
		s.add(25, "No water available - critical hygiene risk")
	case models.WaterLimited:
		s.add(12, "Limited water supply")
	}
	if t.Soap != nil && !*t.Soap {
		s.add(15, "No soap - handwashing impossible")
	}
	if t.Lighting != nil && !*t.Lighting {
		s.add(10, "No lighting - safety risk at night")
	}
	if t.Lock != nil && !*t.Lock {
		s.add(8, "No lock - privacy/safety concern")
	}
}

func scoreWaterPointFailure(s *scorer, w *models.WaterPointDetails) {
	if w == nil {
		return
	}
	for _, reason := range w.ReasonsNonFunc {
		switch reason {
		case models.WFContaminated:
			s.add(25, "Contaminated water source")
		case models.WFNoSource:
			s.add(15, "No water source at all")
		}
	}
	if w.AlternativeNearby == models.ChoiceNo {
		s.add(20, "No alternative source within range")
	}
}

func scoreWaterPointLimited(s *scorer, w *models.WaterPointDetails) {
	if w == nil {
		return
	}
	for _, issue := range w.Issues {
		switch issue {
		case models.WPIntermittent:
			s.add(15, "Intermittent water supply")
		case models.WPWeakFlow:
			s.add(10, "Very weak flow")
		case models.WPPoorQuality:
			s.add(20, "Poor water quality")
		case models.WPLongQueues:
			s.add(12, "Long queues at source")
		case models.WPSafetyConcern:
			s.add(15, "Safety concern at source")
		}
	}
}

func scoreWaterPointWorking(s *scorer, w *models.WaterPointDetails) {
	if w == nil {
		return
	}
	if w.Availability == models.WaterLimited {
		s.add(10, "Limited water availability")
	}
	if w.Flow == models.FlowWeak || w.Flow == models.FlowDripping {
		s.add(8, "Weak flow")
	}
	switch w.Quality {
	case models.QualityDirty:
		s.add(18, "Dirty water detected")
	case models.QualitySmelly:
		s.add(22, "Potentially contaminated water")
	case models.QualityUnknown:
		s.add(10, "Water quality unknown")
	}
	switch w.WaitTime {
	case models.Wait5to15:
		s.add(5, "Moderate queue time")
	case models.Wait15Plus:
		s.add(12, "Long waiting time")
	}
	switch w.AreaCondition {
	case models.AreaMuddy:
		s.add(5, "Muddy area around source")
	case models.AreaFlooded:
		s.add(12, "Flooded area around source")
	case models.AreaUnsafe:
		s.add(15, "Unsafe area around source")
	}
}

func applyMultipliers(s *scorer, kind models.FacilityKind, obs *models.Observation) {
	switch obs.UsersPerDay {
	case models.Usage50to100:
		s.amplify(1.2, "Overcrowded (50-100 users)")
	case models.Usage100Plus:
		s.amplify(1.5, "Severe overcrowding (100+ users)")
	}

	vulnerable := false
	for _, g := range obs.Groups {
		if g.Vulnerable() {
			vulnerable = true
			break
		}
	}
	if vulnerable {
		s.amplify(1.3, "Vulnerable groups present")
	}

	// Narrow compounding amplifiers on top of the generic ones.
	if kind == models.FacilityToilet && obs.HasGroup(models.GroupWomen) &&
		obs.Toilet != nil && obs.Toilet.Lighting != nil && !*obs.Toilet.Lighting {
		s.amplify(1.2, "Women using unlit facility")
	}
	if kind == models.FacilityWaterPoint && obs.HasGroup(models.GroupChildren) &&
		obs.WaterPoint != nil &&
		(obs.WaterPoint.Quality == models.QualityDirty || obs.WaterPoint.Quality == models.QualitySmelly) {
		s.amplify(1.25, "Children drinking from degraded source")
	}
}

func priorityFor(score int) models.Priority {
	switch {
	case score >= thresholdCritical:
		return models.PriorityCritical
	case score >= thresholdHigh:
		return models.PriorityHigh
	case score >= thresholdMedium:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}
