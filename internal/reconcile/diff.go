// Package reconcile compares a staged batch against the stored registry.
package reconcile

import (
	"slices"

	"github.com/dtroode/memberpass/internal/model"
)

// Diff partitions staged rows and stored pseudonyms. It performs no
// writes. Staged rows repeating a pseudonym keep only the first.
// ToDelete is sorted; ToAdd and Existing keep staging order.
func Diff(staged []model.StagedRow, stored map[string]struct{}) model.DiffResult {
	var result model.DiffResult

	seen := make(map[string]struct{}, len(staged))
	for _, row := range staged {
		if _, dup := seen[row.Pseudonym]; dup {
			continue
		}
		seen[row.Pseudonym] = struct{}{}

		if _, ok := stored[row.Pseudonym]; ok {
			result.Existing = append(result.Existing, row)
		} else {
			result.ToAdd = append(result.ToAdd, row)
		}
	}

	for pseudonym := range stored {
		if _, ok := seen[pseudonym]; !ok {
			result.ToDelete = append(result.ToDelete, pseudonym)
		}
	}
	slices.Sort(result.ToDelete)

	return result
}
