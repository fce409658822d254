package schema

import "strings"

// SplitPath splits a dotted display path ("student_id.name") into its first
// segment and the remainder.
func SplitPath(path string) (head, tail string) {
	head, tail, _ = strings.Cut(path, ".")
	return head, tail
}

func lower(s string) string { return strings.ToLower(s) }
