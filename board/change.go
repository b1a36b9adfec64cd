package board

// DetectNew returns the titles of current that do not appear in previous, in current's order.
func DetectNew(current, previous []string) []string {
	seen := make(map[string]struct{}, len(previous))
	for _, t := range previous {
		seen[t] = struct{}{}
	}

	var fresh []string
	for _, t := range current {
		if _, ok := seen[t]; !ok {
			fresh = append(fresh, t)
		}
	}
	return fresh
}
