package migration

import "sort"

// Sort returns a new slice of migrations sorted by Name in lexicographic order.
func Sort(migrations []Migration) []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	return sorted
}

// Pending returns the migrations whose names are not in applied, keeping the
// order of all. The input is not modified.
func Pending(all []Migration, applied map[string]struct{}) []Migration {
	pending := make([]Migration, 0, len(all))

	for i := range all {
		if _, ok := applied[all[i].Name]; ok {
			continue
		}

		pending = append(pending, all[i])
	}

	return pending
}
