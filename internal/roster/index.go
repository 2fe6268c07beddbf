// Package roster derives section membership from the account set.
package roster

import (
	"context"
	"sort"

	"campusroll/internal/model"
)

// Accounts is the part of the identity registry the index reads.
type Accounts interface {
	Accounts(ctx context.Context) ([]model.Account, error)
}

// Index answers "who is in this section". It is recomputed on every call.
type Index struct {
	accounts Accounts
}

func NewIndex(accounts Accounts) *Index {
	return &Index{accounts: accounts}
}

// StudentsIn returns the students of section ordered by family name, full
// name, then id.
func (x *Index) StudentsIn(ctx context.Context, section model.Section) ([]model.Account, error) {
	if !section.Valid() {
		return nil, model.ErrUnknownSection
	}
	all, err := x.accounts.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	students := make([]model.Account, 0, len(all))
	for _, a := range all {
		if a.IsStudent() && a.Section == section {
			students = append(students, a)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		a, b := students[i], students[j]
		if a.FamilyName != b.FamilyName {
			return a.FamilyName < b.FamilyName
		}
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		return a.ID < b.ID
	})
	return students, nil
}

// Counts returns the number of students per section, including empty ones.
func (x *Index) Counts(ctx context.Context) (map[model.Section]int, error) {
	all, err := x.accounts.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[model.Section]int, len(model.Sections))
	for _, s := range model.Sections {
		counts[s] = 0
	}
	for _, a := range all {
		if a.IsStudent() && a.Section.Valid() {
			counts[a.Section]++
		}
	}
	return counts, nil
}
