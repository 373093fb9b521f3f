// Package scoring computes the rules-based compatibility score between two
// profiles. Pure and deterministic: no state, no I/O, and Score(a, b) always
// equals Score(b, a). Missing attributes fall to a component's lowest tier
// instead of failing.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Component maxima. Weights sum to 100.
const (
	MaxComplementarity       = 30
	MaxStageAlignment        = 20
	MaxCommitmentAlignment   = 15
	MaxWorkingStyleAlignment = 15
	MaxLocationFit           = 10
	MaxIntent                = 10

	MaxTotal = 100
)

// Stage values, ordered. Adjacency is distance 1 in this order.
const (
	StageIdea    = "idea"
	StageMVP     = "mvp"
	StageRevenue = "revenue"
	StageGrowth  = "growth"
)

const (
	CommitmentFullTime    = "full_time"
	CommitmentPartTime    = "part_time"
	CommitmentExploratory = "exploratory"
)

const WorkingStyleFlexible = "flexible"

const AvailabilityActive = "actively_looking"

// SkillTag is the closed family a skill belongs to. Complementarity rewards
// pairs whose tag families do not overlap (a builder plus a seller).
type SkillTag string

const (
	TagBuilder  SkillTag = "builder"
	TagSeller   SkillTag = "seller"
	TagOperator SkillTag = "operator"
	TagDesigner SkillTag = "designer"
)

type Skill struct {
	Name  string   `json:"name"`
	Tag   SkillTag `json:"tag,omitempty"`
	Level int      `json:"level,omitempty"`
	Years int      `json:"years,omitempty"`
}

// Profile is the read contract the scorer sees. Built and validated at the
// profile-store boundary; the scorer never rejects input.
type Profile struct {
	Stage          string
	Commitment     string
	WorkingStyle   string
	Communication  string
	Location       string
	RemoteOpen     bool
	TravelTolerant bool
	Availability   string
	HasProofOfWork bool
	Skills         []Skill
}

type Breakdown struct {
	Complementarity       int    `json:"complementarity_score"`
	StageAlignment        int    `json:"stage_alignment_score"`
	CommitmentAlignment   int    `json:"commitment_alignment_score"`
	WorkingStyleAlignment int    `json:"working_style_score"`
	LocationFit           int    `json:"location_fit_score"`
	Intent                int    `json:"intent_score"`
	Total                 int    `json:"match_score"`
	Explanation           string `json:"match_explanation"`
}

// Score computes the full breakdown for a pair of profiles.
func Score(a, b Profile) Breakdown {
	bd := Breakdown{
		Complementarity:       complementarity(a.Skills, b.Skills),
		StageAlignment:        stageAlignment(a.Stage, b.Stage),
		CommitmentAlignment:   commitmentAlignment(a.Commitment, b.Commitment),
		WorkingStyleAlignment: workingStyleAlignment(a.WorkingStyle, b.WorkingStyle),
		LocationFit:           locationFit(a, b),
		Intent:                intent(a, b),
	}
	total := bd.Complementarity + bd.StageAlignment + bd.CommitmentAlignment +
		bd.WorkingStyleAlignment + bd.LocationFit + bd.Intent
	if total > MaxTotal {
		total = MaxTotal
	}
	bd.Total = total
	bd.Explanation = explanation(bd)
	return bd
}

const (
	overlapThreshold     = 0.25
	complementarityFloor = 5
)

func complementarity(a, b []Skill) int {
	if len(a) == 0 || len(b) == 0 {
		return complementarityFloor
	}
	overlap := nameOverlapFraction(a, b)
	score := MaxComplementarity
	if overlap > overlapThreshold {
		decay := (overlap - overlapThreshold) / (1 - overlapThreshold)
		score = MaxComplementarity - int(math.Round(decay*22))
	}
	if !tagsComplementary(a, b) {
		score -= 4
	}
	if score < complementarityFloor {
		score = complementarityFloor
	}
	return score
}

func nameOverlapFraction(a, b []Skill) float64 {
	setA := skillNames(a)
	setB := skillNames(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	common := 0
	for name := range setA {
		if _, ok := setB[name]; ok {
			common++
		}
	}
	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	return float64(common) / float64(smaller)
}

func skillNames(skills []Skill) map[string]struct{} {
	out := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name != "" {
			out[name] = struct{}{}
		}
	}
	return out
}

// tagsComplementary reports whether the two sides cover disjoint skill
// families, e.g. one builder-tagged and one seller-tagged.
func tagsComplementary(a, b []Skill) bool {
	tagsA := skillTags(a)
	tagsB := skillTags(b)
	if len(tagsA) == 0 || len(tagsB) == 0 {
		return false
	}
	for tag := range tagsA {
		if _, ok := tagsB[tag]; ok {
			return false
		}
	}
	return true
}

func skillTags(skills []Skill) map[SkillTag]struct{} {
	out := make(map[SkillTag]struct{}, len(skills))
	for _, s := range skills {
		tag := s.Tag
		if tag == "" {
			tag = TagForSkill(s.Name)
		}
		if tag != "" {
			out[tag] = struct{}{}
		}
	}
	return out
}

var stageOrder = map[string]int{
	StageIdea:    0,
	StageMVP:     1,
	StageRevenue: 2,
	StageGrowth:  3,
}

func stageAlignment(a, b string) int {
	ia, okA := stageOrder[normalize(a)]
	ib, okB := stageOrder[normalize(b)]
	if !okA || !okB {
		return 5
	}
	switch {
	case ia == ib:
		return MaxStageAlignment
	case abs(ia-ib) == 1:
		return 15
	default:
		return 5
	}
}

func commitmentAlignment(a, b string) int {
	ca, cb := normalize(a), normalize(b)
	if ca == "" || cb == "" {
		return 5
	}
	if ca == cb && (ca == CommitmentFullTime || ca == CommitmentPartTime) {
		return MaxCommitmentAlignment
	}
	if ca == CommitmentExploratory || cb == CommitmentExploratory {
		return 10
	}
	return 5
}

func workingStyleAlignment(a, b string) int {
	wa, wb := normalize(a), normalize(b)
	if wa == "" || wb == "" {
		return 5
	}
	if wa == wb {
		return MaxWorkingStyleAlignment
	}
	if wa == WorkingStyleFlexible || wb == WorkingStyleFlexible {
		return 10
	}
	return 5
}

func locationFit(a, b Profile) int {
	la, lb := normalize(a.Location), normalize(b.Location)
	if la != "" && la == lb {
		return MaxLocationFit
	}
	if a.RemoteOpen && b.RemoteOpen {
		return 8
	}
	if a.TravelTolerant || b.TravelTolerant {
		return 6
	}
	return 2
}

func intent(a, b Profile) int {
	var score int
	switch {
	case a.HasProofOfWork && b.HasProofOfWork:
		score = MaxIntent
	case a.HasProofOfWork || b.HasProofOfWork:
		score = 6
	default:
		score = 3
	}
	if normalize(a.Availability) == AvailabilityActive && normalize(b.Availability) == AvailabilityActive {
		score += 2
	}
	if score > MaxIntent {
		score = MaxIntent
	}
	return score
}

// explanation names the two highest-scoring components. Ties break on the
// fixed component order so the text is deterministic.
func explanation(bd Breakdown) string {
	type comp struct {
		label string
		score int
		order int
	}
	comps := []comp{
		{"complementary skills", bd.Complementarity, 0},
		{"stage alignment", bd.StageAlignment, 1},
		{"commitment alignment", bd.CommitmentAlignment, 2},
		{"working style", bd.WorkingStyleAlignment, 3},
		{"location fit", bd.LocationFit, 4},
		{"shared intent", bd.Intent, 5},
	}
	sort.SliceStable(comps, func(i, j int) bool {
		if comps[i].score != comps[j].score {
			return comps[i].score > comps[j].score
		}
		return comps[i].order < comps[j].order
	})
	return fmt.Sprintf("Strongest signals: %s and %s.", comps[0].label, comps[1].label)
}

// TagForSkill maps a known skill name to its family. Unknown names have no
// family and do not participate in the complementarity tag check.
func TagForSkill(name string) SkillTag {
	switch normalize(name) {
	case "backend", "frontend", "fullstack", "mobile", "ml", "data", "devops", "hardware", "engineering":
		return TagBuilder
	case "sales", "marketing", "growth", "bizdev", "partnerships", "fundraising":
		return TagSeller
	case "operations", "ops", "finance", "legal", "product", "hr":
		return TagOperator
	case "design", "ux", "ui", "brand":
		return TagDesigner
	default:
		return ""
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
