package catalog

// MatchVariants returns the variant keys present in every scenario table
// and in the historical table. Any empty or missing table forces an
// empty result: partial coverage never produces a partial match. The
// result is sorted by model then variant so repeated runs produce
// identical output.
func MatchVariants(scenarios []*RunTable, historical *RunTable) []VariantKey {
	if historical.Len() == 0 || len(scenarios) == 0 {
		return nil
	}
	for _, t := range scenarios {
		if t.Len() == 0 {
			return nil
		}
	}

	var matched []VariantKey
	for _, key := range historical.Keys() {
		inAll := true
		for _, t := range scenarios {
			if _, ok := t.URL(key); !ok {
				inAll = false
				break
			}
		}
		if inAll {
			matched = append(matched, key)
		}
	}
	// historical.Keys() is already sorted, so matched is too.
	return matched
}
