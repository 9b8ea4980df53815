package matcher

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
)

// galleryScorer derives the score from the gallery file's first
// coordinate, letting each candidate carry its own expected score.
type galleryScorer struct{}

func (galleryScorer) Score(ctx context.Context, probePath, galleryPath string) (int, error) {
	data, err := os.ReadFile(galleryPath)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, nil
	}
	return strconv.Atoi(fields[0])
}

// scoredCandidate builds a text-form candidate whose comparison score
// is its first x coordinate.
func scoredCandidate(id, nationalID string, score int) Candidate {
	return Candidate{
		TemplateID: id,
		NationalID: nationalID,
		Template:   []byte(strconv.Itoa(score) + " 100 30\n"),
	}
}

func TestIdentifyRanksByScoreDescending(t *testing.T) {
	engine := NewEngine(galleryScorer{})
	probe := TextInput("100 100 30\n")

	candidates := []Candidate{
		scoredCandidate("tpl-a", "ID-1", 55),
		scoredCandidate("tpl-b", "ID-2", 90),
		scoredCandidate("tpl-c", "ID-3", 70),
	}

	matches := engine.Identify(context.Background(), probe, candidates, 40, 0, 2)

	if len(matches) != 3 {
		t.Fatalf("len = %d, want 3", len(matches))
	}
	wantOrder := []string{"tpl-b", "tpl-c", "tpl-a"}
	for i, want := range wantOrder {
		if matches[i].TemplateID != want {
			t.Errorf("rank %d = %s (score %d), want %s", i, matches[i].TemplateID, matches[i].Score, want)
		}
	}
}

func TestIdentifyFiltersBelowThreshold(t *testing.T) {
	engine := NewEngine(galleryScorer{})
	probe := TextInput("100 100 30\n")

	candidates := []Candidate{
		scoredCandidate("tpl-low", "ID-1", 10),
		scoredCandidate("tpl-high", "ID-2", 80),
	}

	matches := engine.Identify(context.Background(), probe, candidates, 40, 0, 2)

	if len(matches) != 1 {
		t.Fatalf("len = %d, want 1", len(matches))
	}
	if matches[0].TemplateID != "tpl-high" {
		t.Errorf("match = %s, want tpl-high", matches[0].TemplateID)
	}
}

func TestIdentifyAppliesLimit(t *testing.T) {
	engine := NewEngine(galleryScorer{})
	probe := TextInput("100 100 30\n")

	var candidates []Candidate
	for i := 0; i < 8; i++ {
		candidates = append(candidates, scoredCandidate(
			"tpl-"+strconv.Itoa(i), "ID-"+strconv.Itoa(i), 50+i))
	}

	matches := engine.Identify(context.Background(), probe, candidates, 40, 3, 4)

	if len(matches) != 3 {
		t.Fatalf("len = %d, want 3 (limit)", len(matches))
	}
	// The cap keeps the best scores, not the first arrivals.
	if matches[0].Score != 57 {
		t.Errorf("top score = %d, want 57", matches[0].Score)
	}
}

func TestIdentifyAbsorbsFailures(t *testing.T) {
	engine := NewEngine(galleryScorer{})
	probe := TextInput("100 100 30\n")

	candidates := []Candidate{
		scoredCandidate("tpl-good", "ID-1", 75),
		{TemplateID: "tpl-bad", NationalID: "ID-2", Template: []byte("garbage not numbers\n")},
	}

	matches := engine.Identify(context.Background(), probe, candidates, 40, 0, 2)

	if len(matches) != 1 {
		t.Fatalf("len = %d, want 1 (failed candidate absorbed)", len(matches))
	}
	if matches[0].TemplateID != "tpl-good" {
		t.Errorf("match = %s, want tpl-good", matches[0].TemplateID)
	}
}

func TestIdentifyTieBreaksByTemplateID(t *testing.T) {
	engine := NewEngine(galleryScorer{})
	probe := TextInput("100 100 30\n")

	candidates := []Candidate{
		scoredCandidate("tpl-z", "ID-1", 60),
		scoredCandidate("tpl-a", "ID-2", 60),
	}

	matches := engine.Identify(context.Background(), probe, candidates, 40, 0, 2)

	if len(matches) != 2 {
		t.Fatalf("len = %d, want 2", len(matches))
	}
	if matches[0].TemplateID != "tpl-a" || matches[1].TemplateID != "tpl-z" {
		t.Errorf("tie order = %s, %s; want tpl-a, tpl-z", matches[0].TemplateID, matches[1].TemplateID)
	}
}

func TestIdentifyEmptyGallery(t *testing.T) {
	engine := NewEngine(galleryScorer{})

	matches := engine.Identify(context.Background(), TextInput("100 100 30\n"), nil, 40, 0, 2)

	if len(matches) != 0 {
		t.Errorf("len = %d, want 0", len(matches))
	}
}
