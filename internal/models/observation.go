package models

// FacilityKind is the category of the reported asset.
type FacilityKind string

const (
	FacilityToilet     FacilityKind = "TOILET"
	FacilityWaterPoint FacilityKind = "WATER_POINT"
)

func (k FacilityKind) Valid() bool {
	return k == FacilityToilet || k == FacilityWaterPoint
}

// FunctionalState is the three-way gate that decides which further fields
// and which scoring branch apply.
type FunctionalState string

const (
	FunctionalYes     FunctionalState = "yes"
	FunctionalLimited FunctionalState = "limited"
	FunctionalNo      FunctionalState = "no"
)

func (s FunctionalState) Valid() bool {
	return s == FunctionalYes || s == FunctionalLimited || s == FunctionalNo
}

// WaterLevel describes water availability at a facility.
type WaterLevel string

const (
	WaterYes     WaterLevel = "Yes"
	WaterLimited WaterLevel = "Limited"
	WaterNone    WaterLevel = "None"
)

// UsageBucket is the bucketed users-per-day estimate.
type UsageBucket string

const (
	UsageUnder25 UsageBucket = "<25"
	Usage25to50  UsageBucket = "25-50"
	Usage50to100 UsageBucket = "50-100"
	Usage100Plus UsageBucket = "100+"
)

// Group is a demographic tag attached to an observation.
type Group string

const (
	GroupWomen    Group = "Women"
	GroupChildren Group = "Children"
	GroupElderly  Group = "Elderly"
	GroupDisabled Group = "Disabled"
	GroupMen      Group = "Men"
)

// Vulnerable reports whether the group triggers the vulnerable-population
// risk multiplier.
func (g Group) Vulnerable() bool {
	switch g {
	case GroupWomen, GroupChildren, GroupElderly, GroupDisabled:
		return true
	}
	return false
}

// ToiletFailure is a reason a toilet is unusable.
type ToiletFailure string

const (
	ToiletNoWater    ToiletFailure = "no_water"
	ToiletBlocked    ToiletFailure = "blocked"
	ToiletCollapsed  ToiletFailure = "collapsed"
	ToiletSafetyRisk ToiletFailure = "safety_risk"
)

// ToiletIssue is a degradation reported on a partially working toilet.
type ToiletIssue string

const (
	IssueLongWait ToiletIssue = "long_waiting"
)

// WaterPointIssue is a degradation on a partially working water point.
type WaterPointIssue string

const (
	WPIntermittent  WaterPointIssue = "intermittent"
	WPWeakFlow      WaterPointIssue = "weak_flow"
	WPPoorQuality   WaterPointIssue = "poor_quality"
	WPLongQueues    WaterPointIssue = "long_queues"
	WPSafetyConcern WaterPointIssue = "safety_concern"
)

// WaterFailure is a reason a water point is non-functional.
type WaterFailure string

const (
	WFPumpBroken   WaterFailure = "Pump broken"
	WFNoSource     WaterFailure = "No water source"
	WFTapDamaged   WaterFailure = "Tap damaged"
	WFContaminated WaterFailure = "Contaminated water"
	WFFlooded      WaterFailure = "Flooded"
	WFSafetyRisk   WaterFailure = "Safety risk"
	WFOther        WaterFailure = "Other"
)

// FlowStrength describes the flow at a water point.
type FlowStrength string

const (
	FlowGood     FlowStrength = "Good"
	FlowWeak     FlowStrength = "Weak"
	FlowDripping FlowStrength = "Dripping"
)

// WaterQuality describes observed water quality.
type WaterQuality string

const (
	QualityClear   WaterQuality = "Clear"
	QualityDirty   WaterQuality = "Dirty"
	QualitySmelly  WaterQuality = "Smelly"
	QualityUnknown WaterQuality = "Unknown"
)

// WaitBucket is the bucketed queueing time at a water point.
type WaitBucket string

const (
	WaitUnder5  WaitBucket = "<5 min"
	Wait5to15   WaitBucket = "5-15 min"
	Wait15Plus  WaitBucket = "15+ min"
	WaitUnknown WaitBucket = "Unknown"
)

// AreaCondition describes the ground around a water point.
type AreaCondition string

const (
	AreaMuddy   AreaCondition = "muddy"
	AreaFlooded AreaCondition = "flooded"
	AreaUnsafe  AreaCondition = "unsafe"
)

// TriChoice is a yes/no/unknown answer (e.g. "is an alternative nearby?").
type TriChoice string

const (
	ChoiceYes     TriChoice = "YES"
	ChoiceNo      TriChoice = "NO"
	ChoiceUnknown TriChoice = "UNKNOWN"
)

// DistanceBucket is the bucketed distance to an alternative source.
type DistanceBucket string

const (
	DistUnder100 DistanceBucket = "<100m"
	Dist100to300 DistanceBucket = "100-300m"
	DistOver300  DistanceBucket = ">300m"
	DistUnknown  DistanceBucket = "Unknown"
)

// ToiletDetails carries the toilet-specific answers. Which fields are
// meaningful depends on the observation's functional state; absent fields
// (nil pointers, empty strings, empty slices) carry no signal.
type ToiletDetails struct {
	Water             WaterLevel      `json:"water,omitempty"`
	Soap              *bool           `json:"soap,omitempty"`
	Lighting          *bool           `json:"lighting,omitempty"`
	Lock              *bool           `json:"lock,omitempty"`
	Issues            []ToiletIssue   `json:"issues,omitempty"`
	ReasonsUnusable   []ToiletFailure `json:"reasons_unusable,omitempty"`
	AlternativeNearby TriChoice       `json:"alternative_nearby,omitempty"`
}

// WaterPointDetails carries the water-point-specific answers, gated the
// same way by functional state.
type WaterPointDetails struct {
	Availability        WaterLevel        `json:"availability,omitempty"`
	Flow                FlowStrength      `json:"flow,omitempty"`
	Quality             WaterQuality      `json:"quality,omitempty"`
	WaitTime            WaitBucket        `json:"wait_time,omitempty"`
	AreaCondition       AreaCondition     `json:"area_condition,omitempty"`
	Issues              []WaterPointIssue `json:"issues,omitempty"`
	ReasonsNonFunc      []WaterFailure    `json:"reasons_non_functional,omitempty"`
	AlternativeNearby   TriChoice         `json:"alternative_nearby,omitempty"`
	AlternativeDistance DistanceBucket    `json:"alternative_distance,omitempty"`
}

// Observation is a single field observation of a facility. Kind selects
// which of the two detail branches is populated; Functional gates which
// fields inside the branch are meaningful.
type Observation struct {
	Kind        FacilityKind       `json:"kind"`
	Zone        string             `json:"zone"`
	FacilityID  string             `json:"facility_id"`
	Functional  FunctionalState    `json:"functional"`
	UsersPerDay UsageBucket        `json:"users_per_day,omitempty"`
	Groups      []Group            `json:"groups,omitempty"`
	Notes       string             `json:"notes,omitempty"`
	Toilet      *ToiletDetails     `json:"toilet,omitempty"`
	WaterPoint  *WaterPointDetails `json:"water_point,omitempty"`
}

// HasGroup reports whether the group tag is present on the observation.
func (o *Observation) HasGroup(g Group) bool {
	for _, have := range o.Groups {
		if have == g {
			return true
		}
	}
	return false
}

// FacilityKey is the triple that identifies a facility for duplicate
// detection.
type FacilityKey struct {
	Zone       string       `json:"zone"`
	FacilityID string       `json:"facility_id"`
	Kind       FacilityKind `json:"kind"`
}

// Key returns the facility key of the observation.
func (o *Observation) Key() FacilityKey {
	return FacilityKey{Zone: o.Zone, FacilityID: o.FacilityID, Kind: o.Kind}
}
