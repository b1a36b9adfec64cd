package board

import (
	"cmp"
	"slices"

	"noticeboard-notifier/pkg/notice"
)

// Store is the in-memory notice collection.
// Regular records are kept deduplicated by number and sorted strictly descending.
type Store struct {
	pinned  []notice.Record
	regular []notice.Record
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// ReplaceFirstPage replaces both sequences with the records of a first page.
func (s *Store) ReplaceFirstPage(pinned, regular []notice.Record) {
	s.pinned = slices.Clone(pinned)
	s.regular = uniqueRegular(regular, nil)
	sortDescending(s.regular)
}

// MergeNextPage adds the records whose number is not already stored and
// returns how many were added.
func (s *Store) MergeNextPage(regular []notice.Record) int {
	seen := make(map[int]struct{}, len(s.regular))
	for _, r := range s.regular {
		if n, ok := r.Seq(); ok {
			seen[n] = struct{}{}
		}
	}

	added := uniqueRegular(regular, seen)
	if len(added) == 0 {
		return 0
	}
	sortDescending(added)
	s.regular = append(s.regular, added...)
	sortDescending(s.regular)
	return len(added)
}

// Collection returns a copy of the stored records.
func (s *Store) Collection() notice.Collection {
	return notice.Collection{
		Pinned:  slices.Clone(s.pinned),
		Regular: slices.Clone(s.regular),
	}
}

// Len returns the number of stored records, pinned included.
func (s *Store) Len() int {
	return len(s.pinned) + len(s.regular)
}

// uniqueRegular returns the records of in with a valid number not present in
// seen, keeping the first occurrence of each number. seen is updated.
func uniqueRegular(in []notice.Record, seen map[int]struct{}) []notice.Record {
	if seen == nil {
		seen = make(map[int]struct{}, len(in))
	}
	out := make([]notice.Record, 0, len(in))
	for _, r := range in {
		n, ok := r.Seq()
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, r)
	}
	return out
}

func sortDescending(records []notice.Record) {
	slices.SortStableFunc(records, func(a, b notice.Record) int {
		na, _ := a.Seq()
		nb, _ := b.Seq()
		return cmp.Compare(nb, na)
	})
}
