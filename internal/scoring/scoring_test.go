package scoring

import (
	"math/rand"
	"strings"
	"testing"
)

func randomProfile(r *rand.Rand) Profile {
	stages := []string{"", StageIdea, StageMVP, StageRevenue, StageGrowth, "unknown"}
	commitments := []string{"", CommitmentFullTime, CommitmentPartTime, CommitmentExploratory}
	styles := []string{"", "structured", "async", "sprint", WorkingStyleFlexible}
	locations := []string{"", "austin", "nyc", "berlin"}
	availabilities := []string{"", AvailabilityActive, "open", "paused"}
	skillPool := []Skill{
		{Name: "backend"}, {Name: "frontend"}, {Name: "ml"},
		{Name: "sales"}, {Name: "marketing"},
		{Name: "design"}, {Name: "product"}, {Name: "obscure-skill"},
	}
	skills := make([]Skill, 0, 3)
	for _, s := range skillPool {
		if r.Intn(3) == 0 {
			skills = append(skills, s)
		}
	}
	return Profile{
		Stage:          stages[r.Intn(len(stages))],
		Commitment:     commitments[r.Intn(len(commitments))],
		WorkingStyle:   styles[r.Intn(len(styles))],
		Location:       locations[r.Intn(len(locations))],
		RemoteOpen:     r.Intn(2) == 0,
		TravelTolerant: r.Intn(2) == 0,
		Availability:   availabilities[r.Intn(len(availabilities))],
		HasProofOfWork: r.Intn(2) == 0,
		Skills:         skills,
	}
}

func TestScoreSymmetry(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		a := randomProfile(r)
		b := randomProfile(r)
		ab := Score(a, b)
		ba := Score(b, a)
		if ab != ba {
			t.Fatalf("score not symmetric at iteration %d:\nab=%+v\nba=%+v", i, ab, ba)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		bd := Score(randomProfile(r), randomProfile(r))
		checks := []struct {
			name  string
			score int
			max   int
		}{
			{"complementarity", bd.Complementarity, MaxComplementarity},
			{"stage", bd.StageAlignment, MaxStageAlignment},
			{"commitment", bd.CommitmentAlignment, MaxCommitmentAlignment},
			{"working_style", bd.WorkingStyleAlignment, MaxWorkingStyleAlignment},
			{"location", bd.LocationFit, MaxLocationFit},
			{"intent", bd.Intent, MaxIntent},
			{"total", bd.Total, MaxTotal},
		}
		for _, c := range checks {
			if c.score < 0 || c.score > c.max {
				t.Fatalf("iteration %d: component %s out of bounds: %d (max %d)", i, c.name, c.score, c.max)
			}
		}
	}
}

func TestScoreBuilderSellerPair(t *testing.T) {
	a := Profile{
		Stage:      StageMVP,
		Commitment: CommitmentFullTime,
		Skills:     []Skill{{Name: "backend"}},
	}
	b := Profile{
		Stage:      StageMVP,
		Commitment: CommitmentFullTime,
		Skills:     []Skill{{Name: "sales"}},
	}
	bd := Score(a, b)
	if bd.StageAlignment != 20 {
		t.Fatalf("stage alignment = %d, want 20", bd.StageAlignment)
	}
	if bd.CommitmentAlignment != 15 {
		t.Fatalf("commitment alignment = %d, want 15", bd.CommitmentAlignment)
	}
	if bd.Complementarity != MaxComplementarity {
		t.Fatalf("complementarity = %d, want %d (disjoint builder/seller skills)", bd.Complementarity, MaxComplementarity)
	}
	if bd.Total < 70 || bd.Total > 95 {
		t.Fatalf("total = %d, want high 70s-90s", bd.Total)
	}
	if !strings.Contains(bd.Explanation, "complementary skills") || !strings.Contains(bd.Explanation, "stage alignment") {
		t.Fatalf("explanation %q should cite complementary skills and stage alignment", bd.Explanation)
	}
}

func TestScoreEmptyProfiles(t *testing.T) {
	bd := Score(Profile{}, Profile{})
	if bd.Complementarity != 5 {
		t.Fatalf("complementarity = %d, want lowest tier 5", bd.Complementarity)
	}
	if bd.StageAlignment != 5 {
		t.Fatalf("stage alignment = %d, want lowest tier 5", bd.StageAlignment)
	}
	if bd.CommitmentAlignment != 5 {
		t.Fatalf("commitment alignment = %d, want lowest tier 5", bd.CommitmentAlignment)
	}
	if bd.WorkingStyleAlignment != 5 {
		t.Fatalf("working style = %d, want lowest tier 5", bd.WorkingStyleAlignment)
	}
	if bd.LocationFit != 2 {
		t.Fatalf("location fit = %d, want lowest tier 2", bd.LocationFit)
	}
	if bd.Intent != 3 {
		t.Fatalf("intent = %d, want lowest tier 3", bd.Intent)
	}
	if bd.Total != 25 {
		t.Fatalf("total = %d, want 25", bd.Total)
	}
}

func TestStageAlignment(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want int
	}{
		{"exact", StageMVP, StageMVP, 20},
		{"adjacent_idea_mvp", StageIdea, StageMVP, 15},
		{"adjacent_revenue_growth", StageRevenue, StageGrowth, 15},
		{"non_adjacent", StageIdea, StageGrowth, 5},
		{"missing_one_side", "", StageMVP, 5},
		{"unknown_value", "seed", StageMVP, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stageAlignment(tc.a, tc.b); got != tc.want {
				t.Fatalf("stageAlignment(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestComplementarityDecaysWithOverlap(t *testing.T) {
	base := []Skill{{Name: "backend"}, {Name: "frontend"}, {Name: "ml"}, {Name: "data"}}
	overlapping := [][]Skill{
		{{Name: "sales"}, {Name: "marketing"}, {Name: "bizdev"}, {Name: "growth"}},
		{{Name: "backend"}, {Name: "sales"}, {Name: "marketing"}, {Name: "bizdev"}},
		{{Name: "backend"}, {Name: "frontend"}, {Name: "sales"}, {Name: "marketing"}},
		{{Name: "backend"}, {Name: "frontend"}, {Name: "ml"}, {Name: "sales"}},
		{{Name: "backend"}, {Name: "frontend"}, {Name: "ml"}, {Name: "data"}},
	}
	prev := MaxComplementarity + 1
	for i, other := range overlapping {
		got := complementarity(base, other)
		if got > prev {
			t.Fatalf("complementarity increased with overlap at step %d: %d > %d", i, got, prev)
		}
		prev = got
	}
	if full := complementarity(base, base); full > 10 {
		t.Fatalf("fully overlapping skill sets scored %d, want near floor", full)
	}
}

func TestIntentBonusCapped(t *testing.T) {
	a := Profile{HasProofOfWork: true, Availability: AvailabilityActive}
	b := Profile{HasProofOfWork: true, Availability: AvailabilityActive}
	if got := intent(a, b); got != MaxIntent {
		t.Fatalf("intent = %d, want capped at %d", got, MaxIntent)
	}
	c := Profile{HasProofOfWork: true, Availability: AvailabilityActive}
	d := Profile{Availability: AvailabilityActive}
	if got := intent(c, d); got != 8 {
		t.Fatalf("intent = %d, want 6+2=8", got)
	}
}

func TestTagForSkill(t *testing.T) {
	if TagForSkill("Backend") != TagBuilder {
		t.Fatalf("backend should map to builder")
	}
	if TagForSkill("sales") != TagSeller {
		t.Fatalf("sales should map to seller")
	}
	if TagForSkill("underwater-basket-weaving") != "" {
		t.Fatalf("unknown skills should have no tag")
	}
}
