package ledger

// FilterNew returns the candidates not present in known, in input order.
// Matching is exact: no case folding, trailing-slash or query normalisation.
func FilterNew(candidates []string, known map[string]struct{}) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := known[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// FilterNew applies the package-level filter against the state's known refs.
func (s *State) FilterNew(candidates []string) []string {
	return FilterNew(candidates, s.known)
}
