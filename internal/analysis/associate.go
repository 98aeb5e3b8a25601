package analysis

import "sort"

// AssociationMap maps each imported symbol to the sorted, de-duplicated
// tests that call it. Every imported symbol has an entry, possibly empty.
type AssociationMap map[string][]string

// Associate adds each test to the entry of every imported name it calls.
// Calls to names that were not imported are ignored.
func Associate(profiles map[string]*TestProfile, imports ImportSet) AssociationMap {
	sets := make(map[string]map[string]struct{}, len(imports))
	for name := range imports {
		sets[name] = make(map[string]struct{})
	}
	for testName, p := range profiles {
		for _, call := range p.Calls {
			if tests, ok := sets[call]; ok {
				tests[testName] = struct{}{}
			}
		}
	}

	out := make(AssociationMap, len(sets))
	for name, tests := range sets {
		list := make([]string, 0, len(tests))
		for t := range tests {
			list = append(list, t)
		}
		sort.Strings(list)
		out[name] = list
	}
	return out
}

// Merge adds every entry of other into m, prefixing test names with prefix,
// and keeps each list sorted and unique.
func (m AssociationMap) Merge(other AssociationMap, prefix string) {
	for sym, tests := range other {
		seen := make(map[string]struct{}, len(m[sym])+len(tests))
		merged := make([]string, 0, len(m[sym])+len(tests))
		for _, t := range m[sym] {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				merged = append(merged, t)
			}
		}
		for _, t := range tests {
			t = prefix + t
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				merged = append(merged, t)
			}
		}
		sort.Strings(merged)
		m[sym] = merged
	}
}
