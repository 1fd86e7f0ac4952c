package selection

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fpang/thumbnail-backfill/internal/jobconfig"
	"github.com/fpang/thumbnail-backfill/internal/keys"
	"github.com/fpang/thumbnail-backfill/internal/store/storetest"
)

func mustConfig(t *testing.T, ext string) jobconfig.Config {
	t.Helper()
	cfg, err := jobconfig.New("media", "p", 100, ext)
	if err != nil {
		t.Fatalf("jobconfig.New: %v", err)
	}
	return cfg
}

func memWith(listing []string, pageSize int) *storetest.Memory {
	m := storetest.NewMemory("media", pageSize)
	for _, k := range listing {
		m.Set(k, nil)
	}
	return m
}

func TestScan_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		keys           []string
		ext            string
		wantTargets    []string
		wantCandidates int
	}{
		{
			name:           "A: thumbnail already exists",
			keys:           []string{"p/1/a.jpg", "p/1/thumb_100x100_a.jpg"},
			wantTargets:    nil,
			wantCandidates: 1,
		},
		{
			name:           "B: missing thumbnail",
			keys:           []string{"p/1/a.jpg"},
			wantTargets:    []string{"p/1/a.jpg"},
			wantCandidates: 1,
		},
		{
			name:           "C: gif outside default set",
			keys:           []string{"p/1/a.gif"},
			wantTargets:    nil,
			wantCandidates: 0,
		},
		{
			name:           "D: other-size thumbnail only",
			keys:           []string{"p/1/thumb_50x50_a.jpg"},
			wantTargets:    nil,
			wantCandidates: 0,
		},
		{
			name:           "other-size thumbnail does not satisfy target size",
			keys:           []string{"p/1/a.jpg", "p/1/thumb_50x50_a.jpg"},
			wantTargets:    []string{"p/1/a.jpg"},
			wantCandidates: 1,
		},
		{
			name:           "configured extension",
			keys:           []string{"p/1/a.jpg", "p/1/b.png", "p/1/c.PNG"},
			ext:            "png",
			wantTargets:    []string{"p/1/b.png", "p/1/c.PNG"},
			wantCandidates: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Scan(context.Background(), memWith(tt.keys, 0), mustConfig(t, tt.ext))
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if !reflect.DeepEqual(res.Targets, tt.wantTargets) {
				t.Errorf("Targets = %v, want %v", res.Targets, tt.wantTargets)
			}
			if res.Candidates != tt.wantCandidates {
				t.Errorf("Candidates = %d, want %d", res.Candidates, tt.wantCandidates)
			}
			if res.KeysSeen != len(tt.keys) {
				t.Errorf("KeysSeen = %d, want %d", res.KeysSeen, len(tt.keys))
			}
		})
	}
}

func TestScan_MalformedKeySkipped(t *testing.T) {
	// Scenario E: a key with no identifier folder. The empty prefix lets the
	// listing reach it.
	cfg, err := jobconfig.New("media", "", 100, "")
	if err != nil {
		t.Fatalf("jobconfig.New: %v", err)
	}
	m := memWith([]string{"a.jpg", "p/1/b.jpg"}, 0)

	res, err := Scan(context.Background(), m, cfg)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !reflect.DeepEqual(res.Targets, []string{"p/1/b.jpg"}) {
		t.Errorf("Targets = %v", res.Targets)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Key != "a.jpg" {
		t.Fatalf("Skipped = %+v", res.Skipped)
	}
	if !errors.Is(res.Skipped[0].Err, keys.ErrMalformedKey) {
		t.Errorf("Skipped error = %v, want ErrMalformedKey", res.Skipped[0].Err)
	}
}

func TestScan_TrailingSlashPrefix(t *testing.T) {
	cfg, err := jobconfig.New("media", "p/", 100, "")
	if err != nil {
		t.Fatalf("jobconfig.New: %v", err)
	}
	m := memWith([]string{"p/1/a.jpg", "p//1/thumb_100x100_a.jpg", "p/2/b.jpg", "p/2/thumb_100x100_b.jpg"}, 0)

	res, err := Scan(context.Background(), m, cfg)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	// Only the double-slash thumbnail satisfies its source under "p/".
	if !reflect.DeepEqual(res.Targets, []string{"p/2/b.jpg"}) {
		t.Errorf("Targets = %v, want [p/2/b.jpg]", res.Targets)
	}
	if res.ExistingThumbnails != 2 {
		t.Errorf("ExistingThumbnails = %d, want 2", res.ExistingThumbnails)
	}
}

func TestScan_ThumbnailOnLaterPage(t *testing.T) {
	m := memWith([]string{"p/1/a.jpg", "p/2/b.jpg", "p/1/thumb_100x100_a.jpg"}, 1)
	// Source first, its thumbnail two pages later.
	m.Order = []string{"p/1/a.jpg", "p/2/b.jpg", "p/1/thumb_100x100_a.jpg"}

	res, err := Scan(context.Background(), m, mustConfig(t, ""))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !reflect.DeepEqual(res.Targets, []string{"p/2/b.jpg"}) {
		t.Errorf("Targets = %v, want [p/2/b.jpg]", res.Targets)
	}
	if res.Pages != 3 || m.ListCalls() != 3 {
		t.Errorf("Pages = %d, ListCalls = %d, want 3", res.Pages, m.ListCalls())
	}
}

func TestScan_PreservesListingOrder(t *testing.T) {
	order := []string{"p/3/c.jpg", "p/1/a.jpg", "p/2/b.png"}
	m := memWith(order, 2)
	m.Order = order

	res, err := Scan(context.Background(), m, mustConfig(t, ""))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !reflect.DeepEqual(res.Targets, order) {
		t.Errorf("Targets = %v, want %v", res.Targets, order)
	}
}

func TestScan_ListError(t *testing.T) {
	m := memWith([]string{"p/1/a.jpg"}, 0)
	m.FailList = errors.New("throttled")

	if _, err := Scan(context.Background(), m, mustConfig(t, "")); err == nil {
		t.Fatal("expected listing error")
	}
}

func TestScan_NeverTargetsExistingThumbnail(t *testing.T) {
	listing := []string{
		"p/1/a.jpg", "p/1/thumb_100x100_a.jpg",
		"p/2/b.png", "p/2/thumb_50x50_b.png",
		"p/3/thumb_100x100_c.jpg",
	}
	res, err := Scan(context.Background(), memWith(listing, 2), mustConfig(t, ""))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for _, target := range res.Targets {
		if target == "p/1/a.jpg" {
			t.Error("p/1/a.jpg already has a 100x100 thumbnail")
		}
		if target == "p/3/thumb_100x100_c.jpg" {
			t.Error("a thumbnail was selected as a resize target")
		}
	}
	if res.ExistingThumbnails != 2 {
		t.Errorf("ExistingThumbnails = %d, want 2", res.ExistingThumbnails)
	}
}
