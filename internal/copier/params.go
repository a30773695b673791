package copier

import "strings"

// sanitizeBase replaces every character that is not alphanumeric or an
// underscore with an underscore.
func sanitizeBase(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// ParamNames sanitizes a list of column names into unique, deterministic
// "@"-prefixed bind-parameter names for a single prepared statement.
// Collisions after sanitization are resolved by suffixing "_" until the
// name is unique again.
func ParamNames(columns []string) []string {
	used := make(map[string]bool, len(columns))
	out := make([]string, len(columns))
	for i, col := range columns {
		name := sanitizeBase(col)
		for used[name] {
			name += "_"
		}
		used[name] = true
		out[i] = "@" + name
	}
	return out
}
