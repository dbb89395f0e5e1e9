package timing

// Event categories recognized by the capture UI. Unknown categories are
// expected (detectors grow new types ahead of this table) and fall back to
// the default policy.
const (
	CategoryGoal         = "goal"
	CategoryShot         = "shot"
	CategoryShotOnTarget = "shot_on_target"
	CategoryFoul         = "foul"
	CategoryCorner       = "corner"
	CategoryOffside      = "offside"
	CategoryYellowCard   = "yellow_card"
	CategoryRedCard      = "red_card"
	CategorySubstitution = "substitution"
	CategoryPenalty      = "penalty"
	CategoryFreeKick     = "free_kick"
	CategorySave         = "save"
	CategoryClearance    = "clearance"
	CategoryTackle       = "tackle"
	CategoryPass         = "pass"
	CategoryCross        = "cross"
	CategoryHeader       = "header"
	CategoryDribble      = "dribble"
	CategoryInterception = "interception"
	CategoryHighPress    = "high_press"
	CategoryTransition   = "transition"
	CategoryBuildup      = "buildup"
	CategoryOther        = "other"
)

// Policy is the pre/post-roll captured around an event instant, in ms.
type Policy struct {
	BeforeMs int64
	AfterMs  int64
}

var defaultPolicy = Policy{BeforeMs: 15000, AfterMs: 15000}

// Goals and penalties get a longer run-up; discrete whistle events
// (cards, substitutions) need less lead time.
var policies = map[string]Policy{
	CategoryGoal:         {BeforeMs: 20000, AfterMs: 15000},
	CategoryPenalty:      {BeforeMs: 20000, AfterMs: 15000},
	CategoryShot:         {BeforeMs: 12000, AfterMs: 8000},
	CategoryShotOnTarget: {BeforeMs: 12000, AfterMs: 10000},
	CategorySave:         {BeforeMs: 12000, AfterMs: 8000},
	CategoryFoul:         {BeforeMs: 10000, AfterMs: 10000},
	CategoryYellowCard:   {BeforeMs: 8000, AfterMs: 12000},
	CategoryRedCard:      {BeforeMs: 10000, AfterMs: 15000},
	CategoryCorner:       {BeforeMs: 5000, AfterMs: 15000},
	CategoryFreeKick:     {BeforeMs: 5000, AfterMs: 15000},
	CategoryOffside:      {BeforeMs: 10000, AfterMs: 5000},
	CategorySubstitution: {BeforeMs: 5000, AfterMs: 10000},
	CategoryHighPress:    {BeforeMs: 8000, AfterMs: 12000},
	CategoryTransition:   {BeforeMs: 8000, AfterMs: 12000},
	CategoryBuildup:      {BeforeMs: 10000, AfterMs: 15000},
}

// TimingsFor returns the clip window policy for a category. Never fails:
// unrecognized categories get the default 15s/15s window.
func TimingsFor(category string) Policy {
	if p, ok := policies[category]; ok {
		return p
	}
	return defaultPolicy
}
