package aggregate

import "strings"

// SubjectID derives a stable subject identifier from a display name. It is
// the subject part of deterministic point keys, so the same subject always
// lands on the same point across rebuilds.
func SubjectID(name string) string {
	var sb strings.Builder
	lastDash := true // suppress leading dashes
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
