package teaching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseWhitelist(t *testing.T) {
	tests := []struct {
		raw     string
		allowed []string
		denied  []string
		str     string
	}{
		{raw: "", denied: []string{"a"}, str: "off"},
		{raw: "off", denied: []string{"a"}, str: "off"},
		{raw: "ALL", allowed: []string{"a", "b"}, str: "all"},
		{raw: "*", allowed: []string{"anything"}, str: "all"},
		{raw: " g2, g1 ,,", allowed: []string{"g1", "g2", " g1 "}, denied: []string{"g3"}, str: "g1,g2"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			w := ParseWhitelist(tt.raw)
			for _, id := range tt.allowed {
				assert.True(t, w.Allows(id), id)
			}
			for _, id := range tt.denied {
				assert.False(t, w.Allows(id), id)
			}
			assert.Equal(t, tt.str, w.String())
		})
	}
}
