package smscodec

import (
	"strings"

	"github.com/humanitylink/go-wash-reports/internal/models"
)

// table is a paired encode/decode map built from a single pair list so the
// two directions cannot drift apart.
type table struct {
	enc map[string]byte
	dec map[byte]string
}

func newTable(pairs []pair) table {
	t := table{
		enc: make(map[string]byte, len(pairs)),
		dec: make(map[byte]string, len(pairs)),
	}
	for _, p := range pairs {
		t.enc[p.value] = p.code
		t.dec[p.code] = p.value
	}
	return t
}

type pair struct {
	value string
	code  byte
}

// code returns the slot character for a value, or def when the value is
// absent or unknown (encoding is total).
func (t table) code(value string, def byte) byte {
	if c, ok := t.enc[value]; ok {
		return c
	}
	return def
}

// value reverses a slot character. Unknown characters fail decoding.
func (t table) value(c byte) (string, bool) {
	v, ok := t.dec[c]
	return v, ok
}

var (
	functionalTable = newTable([]pair{
		{string(models.FunctionalYes), '0'},
		{string(models.FunctionalLimited), '1'},
		{string(models.FunctionalNo), '2'},
	})

	waterTable = newTable([]pair{
		{string(models.WaterYes), '0'},
		{string(models.WaterLimited), '1'},
		{string(models.WaterNone), '2'},
	})

	boolTable = newTable([]pair{
		{"true", '0'},
		{"false", '1'},
	})

	usageTable = newTable([]pair{
		{string(models.UsageUnder25), '0'},
		{string(models.Usage25to50), '1'},
		{string(models.Usage50to100), '2'},
		{string(models.Usage100Plus), '3'},
	})

	groupTable = newTable([]pair{
		{string(models.GroupWomen), 'W'},
		{string(models.GroupChildren), 'C'},
		{string(models.GroupElderly), 'E'},
		{string(models.GroupDisabled), 'D'},
		{string(models.GroupMen), 'M'},
	})

	wpFuncTable = newTable([]pair{
		{string(models.FunctionalYes), '0'},
		{string(models.FunctionalLimited), 'L'},
		{string(models.FunctionalNo), '1'},
	})

	flowTable = newTable([]pair{
		{string(models.FlowGood), 'G'},
		{string(models.FlowWeak), 'W'},
		{string(models.FlowDripping), 'D'},
	})

	qualityTable = newTable([]pair{
		{string(models.QualityClear), '0'},
		{string(models.QualityDirty), '1'},
		{string(models.QualitySmelly), '2'},
	})

	waitTable = newTable([]pair{
		{string(models.WaitUnder5), '0'},
		{string(models.Wait5to15), '1'},
		{string(models.Wait15Plus), '2'},
		{string(models.WaitUnknown), '3'},
	})

	reasonTable = newTable([]pair{
		{string(models.WFPumpBroken), 'P'},
		{string(models.WFNoSource), 'N'},
		{string(models.WFTapDamaged), 'T'},
		{string(models.WFContaminated), 'C'},
		{string(models.WFFlooded), 'F'},
		{string(models.WFSafetyRisk), 'S'},
		{string(models.WFOther), 'O'},
	})

	altTable = newTable([]pair{
		{string(models.ChoiceYes), 'Y'},
		{string(models.ChoiceNo), 'N'},
		{string(models.ChoiceUnknown), 'U'},
	})

	distTable = newTable([]pair{
		{string(models.DistUnder100), '0'},
		{string(models.Dist100to300), '1'},
		{string(models.DistOver300), '2'},
		{string(models.DistUnknown), '3'},
	})
)

// zoneTable maps the standard camp zones to two-letter codes. Zones
// outside the table fall back to a code derived from the name.
var zoneTable = func() table {
	pairs := make([]pair, 0, 10)
	for c := byte('A'); c <= 'J'; c++ {
		pairs = append(pairs, pair{"Zone " + string(c), c})
	}
	return newTable(pairs)
}()

// zoneCode resolves a zone name to its wire code, deriving one for zones
// not in the static table: first letters of the first two words, or the
// first two characters of a single-word name.
func zoneCode(zone string) string {
	if c, ok := zoneTable.enc[zone]; ok {
		return "Z" + string(c)
	}
	if zone == "" {
		return "ZX"
	}
	parts := strings.Fields(zone)
	if len(parts) >= 2 {
		return strings.ToUpper(string(parts[0][0]) + string(parts[1][0]))
	}
	if len(zone) >= 2 {
		return strings.ToUpper(zone[:2])
	}
	return strings.ToUpper(zone)
}

// zoneName reverses a zone code; codes outside the static table decode to
// "Unknown" since the derivation is not invertible.
func zoneName(code string) string {
	if len(code) == 2 && code[0] == 'Z' {
		if name, ok := zoneTable.value(code[1]); ok {
			return name
		}
	}
	return "Unknown"
}
