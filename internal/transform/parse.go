package transform

import (
	"strconv"
	"strings"
)

// missingTokens are placeholder cell values that mean "no measure".
var missingTokens = map[string]bool{
	"":    true,
	"-":   true,
	"–":   true,
	"—":   true,
	"NA":  true,
	"N/A": true,
}

// ParseMeasure converts a cell value into a float measure. Missing markers,
// placeholder tokens, and unparseable text all map to nil rather than an
// error; thousands separators are tolerated.
func ParseMeasure(s string) *float64 {
	text := strings.TrimSpace(s)
	if missingTokens[strings.ToUpper(text)] {
		return nil
	}
	text = strings.ReplaceAll(text, ",", "")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	return &v
}
