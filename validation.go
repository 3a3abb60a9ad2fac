package main

// isValidPlayerID reports whether s looks like one of our opaque player
// ids. Ids are generated as UUID strings, so the alphabet is ASCII
// letters, digits, '-' and '_'; anything else is rejected before it
// reaches a query.
func isValidPlayerID(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
