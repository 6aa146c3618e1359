// Package smscodec round-trips observations through the compact
// fixed-grammar text format used when the store is unreachable:
//
//	WASH <zoneCode> <facilityCode> <dataCode>-<groupCode>
//
// The data code is position-significant, one character per answer slot;
// the slot layout depends on the facility kind and, for water points, on
// the functional state. Encoding is total (absent answers get defaults);
// decoding is strict (any unrecognized slot character fails).
//
// Scalar fields round-trip exactly. Multi-valued failure-reason lists are
// reduced to their first element on encode; that loss is accepted.
package smscodec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/humanitylink/go-wash-reports/internal/models"
)

const header = "WASH"

// Decode failures. Callers surface these as short user-facing strings,
// never as crashes.
var (
	ErrMalformed      = errors.New("message does not match WASH format")
	ErrBadCode        = errors.New("unrecognized code in message")
	ErrUnknownCommand = errors.New("unknown command")
)

const (
	toiletIDPrefix     = "Toilet Block "
	waterPointIDPrefix = "Water Point "
)

// Encode renders an observation as a compact message. It never fails:
// answers the observation does not carry are encoded as branch defaults.
func Encode(obs *models.Observation) string {
	var data strings.Builder

	if obs.Kind == models.FacilityToilet {
		encodeToilet(&data, obs)
	} else {
		encodeWaterPoint(&data, obs)
	}

	var groups strings.Builder
	for _, g := range obs.Groups {
		if c, ok := groupTable.enc[string(g)]; ok {
			groups.WriteByte(c)
		}
	}

	return fmt.Sprintf("%s %s %s %s-%s",
		header, zoneCode(obs.Zone), facilityCode(obs.FacilityID), data.String(), groups.String())
}

// Toilet layout: [usable][water][soap][light][lock][usersPerDay]
func encodeToilet(b *strings.Builder, obs *models.Observation) {
	t := obs.Toilet
	if t == nil {
		t = &models.ToiletDetails{}
	}
	b.WriteByte(functionalTable.code(string(obs.Functional), '0'))
	b.WriteByte(waterTable.code(string(t.Water), '0'))
	b.WriteByte(boolCode(t.Soap))
	b.WriteByte(boolCode(t.Lighting))
	b.WriteByte(boolCode(t.Lock))
	b.WriteByte(usageTable.code(string(obs.UsersPerDay), '0'))
}

// Water point layouts, selected by the functional slot:
// working/limited: [func][flow][quality][wait][usersPerDay]
// non-functional:  [func][reason][altSource][distance][usersPerDay]
func encodeWaterPoint(b *strings.Builder, obs *models.Observation) {
	w := obs.WaterPoint
	if w == nil {
		w = &models.WaterPointDetails{}
	}
	b.WriteByte(wpFuncTable.code(string(obs.Functional), '0'))

	if obs.Functional == models.FunctionalNo {
		reason := string(models.WFOther)
		if len(w.ReasonsNonFunc) > 0 {
			// Only the first reason survives the wire. Accepted loss.
			reason = string(w.ReasonsNonFunc[0])
		}
		b.WriteByte(reasonTable.code(reason, 'O'))
		b.WriteByte(altTable.code(string(w.AlternativeNearby), 'U'))
		b.WriteByte(distTable.code(string(w.AlternativeDistance), '3'))
		b.WriteByte(usageTable.code(string(obs.UsersPerDay), '0'))
		return
	}

	flowDefault := byte('G')
	if obs.Functional == models.FunctionalLimited {
		flowDefault = 'W'
	}
	b.WriteByte(flowTable.code(string(w.Flow), flowDefault))
	b.WriteByte(qualityTable.code(string(w.Quality), '0'))
	b.WriteByte(waitTable.code(string(w.WaitTime), '0'))
	b.WriteByte(usageTable.code(string(obs.UsersPerDay), '0'))
}

func boolCode(v *bool) byte {
	if v != nil && *v {
		return '0'
	}
	return '1'
}

// facilityCode compresses a facility label to a letter prefix plus its
// ordinal: "Toilet Block 1" -> "T1", "Water Point 2" -> "W2". Labels
// outside the convention pass through unchanged.
func facilityCode(id string) string {
	id = strings.Replace(id, toiletIDPrefix, "T", 1)
	return strings.Replace(id, waterPointIDPrefix, "W", 1)
}

// Decode parses a compact message back into an observation. Any
// structural mismatch or unrecognized slot character returns an error;
// Decode never panics.
func Decode(msg string) (*models.Observation, error) {
	parts := strings.Fields(strings.TrimSpace(msg))
	if len(parts) < 3 {
		return nil, fmt.Errorf("%w: need 4 fields, got %d", ErrMalformed, len(parts))
	}
	if len(parts) != 4 || parts[0] != header {
		return nil, fmt.Errorf("%w: expected %q <zone> <facility> <data>-<groups>", ErrMalformed, header)
	}

	zone := zoneName(parts[1])

	kind, facilityID := expandFacility(parts[2])

	answers, groupCode, _ := strings.Cut(parts[3], "-")
	groups, err := decodeGroups(groupCode)
	if err != nil {
		return nil, err
	}

	obs := &models.Observation{
		Kind:       kind,
		Zone:       zone,
		FacilityID: facilityID,
		Groups:     groups,
		Notes:      "Reported via SMS",
	}

	if kind == models.FacilityToilet {
		err = decodeToilet(obs, answers)
	} else {
		err = decodeWaterPoint(obs, answers)
	}
	if err != nil {
		return nil, err
	}
	return obs, nil
}

func expandFacility(code string) (models.FacilityKind, string) {
	switch {
	case strings.HasPrefix(code, "W"):
		return models.FacilityWaterPoint, waterPointIDPrefix + code[1:]
	case strings.HasPrefix(code, "T"):
		return models.FacilityToilet, toiletIDPrefix + code[1:]
	default:
		return models.FacilityToilet, code
	}
}

func decodeGroups(code string) ([]models.Group, error) {
	if code == "" {
		return nil, nil
	}
	groups := make([]models.Group, 0, len(code))
	for i := 0; i < len(code); i++ {
		name, ok := groupTable.value(code[i])
		if !ok {
			return nil, fmt.Errorf("%w: group %q", ErrBadCode, string(code[i]))
		}
		groups = append(groups, models.Group(name))
	}
	return groups, nil
}

func decodeToilet(obs *models.Observation, answers string) error {
	if len(answers) != 6 {
		return fmt.Errorf("%w: toilet data needs 6 slots, got %d", ErrMalformed, len(answers))
	}

	functional, ok := functionalTable.value(answers[0])
	if !ok {
		return fmt.Errorf("%w: usable %q", ErrBadCode, string(answers[0]))
	}
	water, ok := waterTable.value(answers[1])
	if !ok {
		return fmt.Errorf("%w: water %q", ErrBadCode, string(answers[1]))
	}
	soap, err := decodeBool(answers[2], "soap")
	if err != nil {
		return err
	}
	lighting, err := decodeBool(answers[3], "lighting")
	if err != nil {
		return err
	}
	lock, err := decodeBool(answers[4], "lock")
	if err != nil {
		return err
	}
	usage, ok := usageTable.value(answers[5])
	if !ok {
		return fmt.Errorf("%w: users per day %q", ErrBadCode, string(answers[5]))
	}

	obs.Functional = models.FunctionalState(functional)
	obs.UsersPerDay = models.UsageBucket(usage)
	obs.Toilet = &models.ToiletDetails{
		Water:    models.WaterLevel(water),
		Soap:     soap,
		Lighting: lighting,
		Lock:     lock,
	}
	return nil
}

func decodeWaterPoint(obs *models.Observation, answers string) error {
	if len(answers) != 5 {
		return fmt.Errorf("%w: water point data needs 5 slots, got %d", ErrMalformed, len(answers))
	}

	functional, ok := wpFuncTable.value(answers[0])
	if !ok {
		return fmt.Errorf("%w: functional %q", ErrBadCode, string(answers[0]))
	}
	obs.Functional = models.FunctionalState(functional)

	if obs.Functional == models.FunctionalNo {
		reason, ok := reasonTable.value(answers[1])
		if !ok {
			return fmt.Errorf("%w: reason %q", ErrBadCode, string(answers[1]))
		}
		alt, ok := altTable.value(answers[2])
		if !ok {
			return fmt.Errorf("%w: alternative source %q", ErrBadCode, string(answers[2]))
		}
		dist, ok := distTable.value(answers[3])
		if !ok {
			return fmt.Errorf("%w: distance %q", ErrBadCode, string(answers[3]))
		}
		usage, ok := usageTable.value(answers[4])
		if !ok {
			return fmt.Errorf("%w: users per day %q", ErrBadCode, string(answers[4]))
		}
		obs.UsersPerDay = models.UsageBucket(usage)
		obs.WaterPoint = &models.WaterPointDetails{
			Availability:        models.WaterNone,
			ReasonsNonFunc:      []models.WaterFailure{models.WaterFailure(reason)},
			AlternativeNearby:   models.TriChoice(alt),
			AlternativeDistance: models.DistanceBucket(dist),
		}
		return nil
	}

	flow, ok := flowTable.value(answers[1])
	if !ok {
		return fmt.Errorf("%w: flow %q", ErrBadCode, string(answers[1]))
	}
	quality, ok := qualityTable.value(answers[2])
	if !ok {
		return fmt.Errorf("%w: quality %q", ErrBadCode, string(answers[2]))
	}
	wait, ok := waitTable.value(answers[3])
	if !ok {
		return fmt.Errorf("%w: wait time %q", ErrBadCode, string(answers[3]))
	}
	usage, ok := usageTable.value(answers[4])
	if !ok {
		return fmt.Errorf("%w: users per day %q", ErrBadCode, string(answers[4]))
	}

	availability := models.WaterYes
	if obs.Functional == models.FunctionalLimited {
		availability = models.WaterLimited
	}
	obs.UsersPerDay = models.UsageBucket(usage)
	obs.WaterPoint = &models.WaterPointDetails{
		Availability: availability,
		Flow:         models.FlowStrength(flow),
		Quality:      models.WaterQuality(quality),
		WaitTime:     models.WaitBucket(wait),
	}
	return nil
}

func decodeBool(c byte, slot string) (*bool, error) {
	v, ok := boolTable.value(c)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrBadCode, slot, string(c))
	}
	b := v == "true"
	return &b, nil
}
