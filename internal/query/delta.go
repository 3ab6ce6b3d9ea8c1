package query

// DeltaList is a parsed mutation for a collection-valued field. Exactly one
// of the following holds: Clear is set (empty argument), Set is non-empty
// (full replacement), or Add/Remove carry incremental changes.
type DeltaList struct {
	Clear  bool
	Set    []string
	Add    []string
	Remove []string
}

// ParseDelta parses delta list occurrences. Entries prefixed with + are
// additions, - are removals, and a bare entry switches the whole list to Set
// semantics, discarding any prefixed entries. An argument with no entries
// clears the list. Add and Remove are idempotent with respect to duplicates.
func ParseDelta(occurrences []string) DeltaList {
	var set, add, remove []string
	total := 0
	for _, occ := range occurrences {
		for _, v := range splitCSV(occ) {
			total++
			switch {
			case len(v) > 1 && v[0] == '+':
				add = appendUnique(add, v[1:])
			case len(v) > 1 && v[0] == '-':
				remove = appendUnique(remove, v[1:])
			default:
				set = appendUnique(set, v)
			}
		}
	}

	if total == 0 {
		return DeltaList{Clear: true}
	}
	if len(set) > 0 {
		// Set precedence is absolute: prefixed entries are ignored.
		return DeltaList{Set: set}
	}
	return DeltaList{Add: add, Remove: remove}
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}
