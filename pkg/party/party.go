// Package party defines party identifiers used across protocol sessions.
package party

import "sort"

// ID identifies a participant within a session. IDs are dense, zero-based
// indices into SessionConfig.Parties; the Shamir evaluation point for a
// party is always ID+1, never ID itself.
type ID uint32

// IDSlice is a sortable, de-duplicable list of party IDs.
type IDSlice []ID

func (s IDSlice) Len() int           { return len(s) }
func (s IDSlice) Less(i, j int) bool { return s[i] < s[j] }
func (s IDSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Sorted returns a sorted copy of the slice.
func (s IDSlice) Sorted() IDSlice {
	out := make(IDSlice, len(s))
	copy(out, s)
	sort.Sort(out)
	return out
}

// Contains reports whether id is present in the slice.
func (s IDSlice) Contains(id ID) bool {
	for _, x := range s {
		if x == id {
			return true
		}
	}
	return false
}

// HasDuplicates reports whether any ID appears more than once.
func (s IDSlice) HasDuplicates() bool {
	seen := make(map[ID]struct{}, len(s))
	for _, id := range s {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// Remove returns a copy of the slice with id removed, if present.
func (s IDSlice) Remove(id ID) IDSlice {
	out := make(IDSlice, 0, len(s))
	for _, x := range s {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
