package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"United States", "united states"},
		{"  United   States  ", "united states"},
		{"Côte d'Ivoire", "cote d ivoire"},
		{"República Federal", "republica federal"},
		{"republica federal", "republica federal"},
		{"Korea, Rep.", "korea rep"},
		{"São Tomé and Príncipe", "sao tome and principe"},
		{"Curaçao", "curacao"},
		{"U.S.A.", "u s a"},
		{"", ""},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

// Normalizing an already normalized name must be a no-op, so the key survives
// round trips through the mapping table.
func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Côte d'Ivoire", "Korea, Dem. People's Rep.", "Türkiye", "Bosnia and Herzegovina"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}
