package fairvalue

import (
	"errors"
	"testing"

	"github.com/slabwatch/slabwatch/internal/model"
)

type fakeSource struct {
	snaps map[string]*model.PriceSnapshot
	err   error
	calls int
}

func (f *fakeSource) LatestSnapshot(cardID, grader, grade string) (*model.PriceSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snaps[cardID+"|"+grader+"|"+grade], nil
}

func TestResolveFound(t *testing.T) {
	src := &fakeSource{snaps: map[string]*model.PriceSnapshot{
		"c1|PSA|PSA 9": {Mean: 250.5, Confidence: 72, Volume: 9},
	}}
	r := NewResolver(src)

	est, err := r.Resolve("c1", "PSA", "PSA 9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !est.HasData || est.Average != 250.5 || est.Confidence != 72 || est.Volume != 9 {
		t.Errorf("unexpected estimate: %+v", est)
	}
	if !est.Reliable() {
		t.Error("confidence 72 should be reliable")
	}
}

func TestResolveMissingCohort(t *testing.T) {
	r := NewResolver(&fakeSource{snaps: map[string]*model.PriceSnapshot{}})

	est, err := r.Resolve("c1", "PSA", "PSA 10")
	if err != nil {
		t.Fatalf("missing cohort must not be an error: %v", err)
	}
	if est.HasData || est.Reliable() {
		t.Errorf("expected empty estimate, got %+v", est)
	}
}

func TestResolveGradesNotConflated(t *testing.T) {
	src := &fakeSource{snaps: map[string]*model.PriceSnapshot{
		"c1|PSA|PSA 9":  {Mean: 100, Confidence: 80},
		"c1|PSA|PSA 10": {Mean: 400, Confidence: 80},
	}}
	r := NewResolver(src)

	nine, _ := r.Resolve("c1", "PSA", "PSA 9")
	ten, _ := r.Resolve("c1", "PSA", "PSA 10")
	if nine.Average == ten.Average {
		t.Error("PSA 9 and PSA 10 resolved to the same cohort")
	}
}

func TestResolveLowConfidenceNotReliable(t *testing.T) {
	src := &fakeSource{snaps: map[string]*model.PriceSnapshot{
		"c1|PSA|PSA 9": {Mean: 100, Confidence: 50},
	}}
	r := NewResolver(src)

	est, _ := r.Resolve("c1", "PSA", "PSA 9")
	if !est.HasData {
		t.Error("snapshot exists, HasData should hold")
	}
	if est.Reliable() {
		t.Error("confidence 50 must not pass the >50 gate")
	}
}

func TestResolveCaches(t *testing.T) {
	src := &fakeSource{snaps: map[string]*model.PriceSnapshot{
		"c1|PSA|PSA 9": {Mean: 100, Confidence: 80},
	}}
	r := NewResolver(src)

	for i := 0; i < 5; i++ {
		if _, err := r.Resolve("c1", "PSA", "PSA 9"); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls != 1 {
		t.Errorf("expected a single store hit, got %d", src.calls)
	}
}

func TestResolvePropagatesStoreError(t *testing.T) {
	r := NewResolver(&fakeSource{err: errors.New("db locked")})

	if _, err := r.Resolve("c1", "PSA", "PSA 9"); err == nil {
		t.Error("store failure should surface as an error")
	}
}
