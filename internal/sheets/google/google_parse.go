package google

import (
	"fmt"
	"strconv"
	"strings"
)

// findRow returns the 1-based row holding ownerID and period in its first
// two columns, or 0 when there is none. The header row never matches.
func findRow(values [][]any, ownerID, period string) int {
	for i, raw := range values {
		row := toStrings(raw)
		if len(row) < 2 {
			continue
		}
		if row[0] == ownerID && row[1] == period {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
