package core

import "sort"

// SortByDate orders records by data in the given direction. Records without
// a date always go last; ties are broken by id in the same direction.
func SortByDate(records []Record, order SortOrder) {
	desc := order == Descending
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Data.IsEmpty() != b.Data.IsEmpty() {
			return !a.Data.IsEmpty()
		}
		if !a.Data.Equal(b.Data.Time) {
			if desc {
				return a.Data.After(b.Data.Time)
			}
			return a.Data.Before(b.Data.Time)
		}
		if desc {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}
