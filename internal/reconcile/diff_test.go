package reconcile

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtroode/memberpass/internal/model"
)

func staged(pseudonyms ...string) []model.StagedRow {
	rows := make([]model.StagedRow, 0, len(pseudonyms))
	for i, p := range pseudonyms {
		rows = append(rows, model.StagedRow{Pseudonym: p, Row: model.ValidatedRow{Line: i + 2}})
	}
	return rows
}

func set(pseudonyms ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(pseudonyms))
	for _, p := range pseudonyms {
		s[p] = struct{}{}
	}
	return s
}

func ids(rows []model.StagedRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Pseudonym)
	}
	return out
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name         string
		staged       []model.StagedRow
		stored       map[string]struct{}
		wantDelete   []string
		wantAdd      []string
		wantExisting []string
	}{
		{
			name:         "empty both",
			stored:       set(),
			wantDelete:   nil,
			wantAdd:      []string{},
			wantExisting: []string{},
		},
		{
			name:         "fresh store",
			staged:       staged("b", "a"),
			stored:       set(),
			wantAdd:      []string{"b", "a"},
			wantExisting: []string{},
		},
		{
			name:         "empty batch deletes everything",
			stored:       set("z", "x", "y"),
			wantDelete:   []string{"x", "y", "z"},
			wantAdd:      []string{},
			wantExisting: []string{},
		},
		{
			name:         "mixed",
			staged:       staged("a", "b", "c"),
			stored:       set("b", "d"),
			wantDelete:   []string{"d"},
			wantAdd:      []string{"a", "c"},
			wantExisting: []string{"b"},
		},
		{
			name:         "repeated staged pseudonym keeps first",
			staged:       staged("a", "a", "b"),
			stored:       set("a"),
			wantAdd:      []string{"b"},
			wantExisting: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.staged, tt.stored)
			assert.Equal(t, tt.wantDelete, got.ToDelete)
			assert.Equal(t, tt.wantAdd, ids(got.ToAdd))
			assert.Equal(t, tt.wantExisting, ids(got.Existing))
		})
	}
}

func TestDiff_ExistingKeepsStagedRow(t *testing.T) {
	rows := []model.StagedRow{{Pseudonym: "a", Row: model.ValidatedRow{Line: 9, FirstName: "New"}}}

	got := Diff(rows, set("a"))
	assert.Equal(t, rows, got.Existing)
}

func TestDiff_Partition(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := range 50 {
		t.Run(fmt.Sprintf("case %d", i), func(t *testing.T) {
			var stagedIDs []string
			stored := map[string]struct{}{}
			for range rng.IntN(20) {
				stagedIDs = append(stagedIDs, fmt.Sprintf("p%d", rng.IntN(30)))
			}
			for range rng.IntN(20) {
				stored[fmt.Sprintf("p%d", rng.IntN(30))] = struct{}{}
			}

			got := Diff(staged(stagedIDs...), stored)

			// every stored pseudonym lands in exactly one of ToDelete or Existing
			storedSeen := map[string]int{}
			for _, p := range got.ToDelete {
				storedSeen[p]++
			}
			for _, r := range got.Existing {
				storedSeen[r.Pseudonym]++
			}
			assert.Len(t, storedSeen, len(stored))
			for p, n := range storedSeen {
				assert.Contains(t, stored, p)
				assert.Equal(t, 1, n, p)
			}

			// every staged pseudonym lands in exactly one of ToAdd or Existing
			stagedSeen := map[string]int{}
			for _, r := range got.ToAdd {
				stagedSeen[r.Pseudonym]++
				assert.NotContains(t, stored, r.Pseudonym)
			}
			for _, r := range got.Existing {
				stagedSeen[r.Pseudonym]++
			}
			for _, p := range stagedIDs {
				assert.Equal(t, 1, stagedSeen[p], p)
			}
		})
	}
}
