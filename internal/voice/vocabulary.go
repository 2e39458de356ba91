package voice

import (
	"regexp"

	"github.com/vbonduro/inspectflow/internal/domain"
)

type componentTerm struct {
	label   string
	pattern *regexp.Regexp
}

func term(label, pattern string) componentTerm {
	return componentTerm{label: label, pattern: regexp.MustCompile(`\b(?:` + pattern + `)\b`)}
}

// components is scanned in order, so multi-word parts precede the single
// words they contain ("brake pad" before "brake").
var components = []componentTerm{
	term("brake light", `brake lights?`),
	term("brake pad", `brake pads?`),
	term("brake rotor", `brake rotors?|rotors?`),
	term("brake fluid", `brake fluid`),
	term("brake line", `brake lines?`),
	term("brake caliper", `brake calipers?|calipers?`),
	term("brake", `brakes?`),
	term("tire", `tires?|tyres?`),
	term("wheel bearing", `wheel bearings?`),
	term("battery", `battery|batteries`),
	term("wiper blade", `wiper blades?|wipers?`),
	term("air filter", `(?:engine )?air filters?`),
	term("cabin filter", `cabin (?:air )?filters?`),
	term("oil filter", `oil filters?`),
	term("engine oil", `engine oil|oil`),
	term("transmission fluid", `transmission fluid|trans fluid`),
	term("power steering fluid", `power steering fluid`),
	term("coolant", `coolant|antifreeze`),
	term("serpentine belt", `serpentine belt|drive belt`),
	term("timing belt", `timing belt`),
	term("belt", `belts?`),
	term("radiator hose", `radiator hoses?`),
	term("hose", `hoses?`),
	term("spark plug", `spark plugs?`),
	term("shock absorber", `shock absorbers?|shocks?`),
	term("strut", `struts?`),
	term("ball joint", `ball joints?`),
	term("tie rod", `tie rod ends?|tie rods?`),
	term("cv axle", `cv axles?|cv boots?|cv joints?`),
	term("control arm", `control arms?`),
	term("exhaust", `exhaust|muffler`),
	term("headlight", `headlights?|head lights?`),
	term("tail light", `tail ?lights?`),
	term("alignment", `alignment`),
	term("suspension", `suspension`),
	term("windshield", `windshield|windscreen`),
}

var positionPattern = regexp.MustCompile(`\b(front|rear|left|right|driver|passenger)\b`)

// positionWindow is how far before a component match qualifiers are looked up.
const positionWindow = 20

type conditionBucket struct {
	condition domain.Condition
	pattern   *regexp.Regexp
}

// conditionBuckets are scanned most severe first; the first bucket with a
// match decides the candidate.
var conditionBuckets = []conditionBucket{
	{domain.ConditionNeedsImmediate, regexp.MustCompile(`\b(?:needs? immediate(?: attention| service| replacement)?|immediate attention|unsafe|safety (?:hazard|issue|concern)|dangerous|metal (?:on|to) metal|do not drive|critical(?:ly)?)\b`)},
	{domain.ConditionPoor, regexp.MustCompile(`\b(?:(?:not|no longer) (?:good|great|ok|okay|fine|healthy)|bad|poor|badly worn|worn out|worn through|damaged|cracked|cracking|leaking|leak|broken|failing|failed|dead|corroded|bald|torn|seized|grinding)\b`)},
	{domain.ConditionFair, regexp.MustCompile(`\b(?:worn|wearing|fair|marginal|getting low|getting thin|some wear|moderate wear|aging|dirty)\b`)},
	{domain.ConditionGood, regexp.MustCompile(`\b(?:good|fine|ok|okay|great|excellent|healthy|like new|no issues|no problems)\b`)},
}

// negatedPoor phrases read as a mild assessment. They are removed before the
// buckets are scanned so "not bad" never reaches the poor bucket.
var negatedPoor = regexp.MustCompile(`\b(?:not|isn't|wasn't) (?:too |that |so )?(?:bad|poor|terrible)\b`)

type actionPhrase struct {
	action  domain.Action
	pattern *regexp.Regexp
}

var actionPhrases = []actionPhrase{
	{domain.ActionReplace, regexp.MustCompile(`\b(?:needs? replac(?:ement|ing)|needs? to be replaced|should be replaced|must be replaced|recommend(?:ed)? replac(?:ement|ing)|due for replacement|replace (?:now|soon|immediately))\b`)},
	{domain.ActionInspect, regexp.MustCompile(`\b(?:needs? to be (?:checked|inspected)|should be (?:checked|inspected)|needs? (?:further )?inspection|recheck|check again)\b`)},
	{domain.ActionMonitor, regexp.MustCompile(`\b(?:monitor(?:ing)?|keep an eye on|watch it)\b`)},
	{domain.ActionTopOff, regexp.MustCompile(`\b(?:top(?:ped)? off|top(?:ped)? up)\b`)},
	{domain.ActionRotate, regexp.MustCompile(`\b(?:rotate|rotation)\b`)},
}
