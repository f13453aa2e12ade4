package filters

import (
	"strings"
)

// ParseList flattens repeated and comma-separated parameter values into a trimmed list without
// blanks or duplicates.
func ParseList(values []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

// splitPairs parses "key#value,key#value" into key -> values. Entries without a separator, or with an empty
// key or value, are skipped.
func splitPairs(raw string) map[string][]string {
	out := make(map[string][]string)
	for _, entry := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(entry), "#")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = append(out[key], value)
	}
	return out
}

// ParseCustomFields parses "fieldName#value" pairs. Several values for the same field accumulate.
func ParseCustomFields(raw string) map[string][]string {
	return splitPairs(raw)
}

// ParseNormalisation parses "tag#categoryId" pairs into tag -> distinct category ids.
func ParseNormalisation(raw string) map[string][]string {
	pairs := splitPairs(raw)
	for tag, ids := range pairs {
		pairs[tag] = ParseList(ids)
	}
	return pairs
}

// ParseFlagged turns the yes/no selection into a tri-state: nil when both or neither are selected.
func ParseFlagged(values []string) *bool {
	var yes, no bool
	for _, v := range ParseList(values) {
		switch strings.ToLower(v) {
		case "yes", "true", "flagged":
			yes = true
		case "no", "false", "unflagged":
			no = true
		}
	}
	if yes == no {
		return nil
	}
	return &yes
}
