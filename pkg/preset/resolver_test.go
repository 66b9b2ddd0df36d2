package preset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverIndex() *Index {
	return BuildIndex(Document{
		"meta": map[string]interface{}{"name": "Aya"},
		"parameters": map[string]interface{}{
			"appearance": map[string]interface{}{"description": "red dress"},
			"voice":      map[string]interface{}{"speed": 1.0},
		},
		"rules": []interface{}{
			map[string]interface{}{"id": "greet", "enabled": true, "instruction": "Say hello"},
		},
	}, DefaultIndexOptions())
}

func TestResolverStrategies(t *testing.T) {
	ix := resolverIndex()
	r := NewResolver()

	tests := []struct {
		name   string
		ref    string
		wantID string
	}{
		{name: "exact id", ref: "param:voice.speed", wantID: "param:voice.speed"},
		{name: "position", ref: "1", wantID: "meta:name"},
		{name: "position with spaces", ref: " 2 ", wantID: "param:appearance.description"},
		{name: "quoted id", ref: "`meta:name`", wantID: "meta:name"},
		{name: "full path", ref: "parameters.voice.speed", wantID: "param:voice.speed"},
		{name: "slash path", ref: "parameters/voice/speed", wantID: "param:voice.speed"},
		{name: "suffix without prefix", ref: "appearance.description", wantID: "param:appearance.description"},
		{name: "other prefix", ref: "parameter:voice.speed", wantID: "param:voice.speed"},
		{name: "rule suffix", ref: "greet.enabled", wantID: "rule:greet.enabled"},
		{name: "rule path suffix", ref: "instruction", wantID: "rule:greet.instruction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := r.Resolve(ix, tt.ref)
			require.True(t, ok)
			assert.Equal(t, tt.wantID, n.ID)
		})
	}
}

func TestResolverRejects(t *testing.T) {
	ix := resolverIndex()
	r := NewResolver()

	for _, ref := range []string{"", "0", "99", "hair.color", "ription"} {
		_, ok := r.Resolve(ix, ref)
		assert.False(t, ok, ref)
	}
}

func TestResolveTargetPrefersPosition(t *testing.T) {
	ix := resolverIndex()
	r := NewResolver()

	n, ok := r.ResolveTarget(ix, "1", "param:voice.speed")
	require.True(t, ok)
	assert.Equal(t, "meta:name", n.ID)

	n, ok = r.ResolveTarget(ix, "42", "param:voice.speed")
	require.True(t, ok)
	assert.Equal(t, "param:voice.speed", n.ID)

	n, ok = r.ResolveTarget(ix, "voice.speed", "")
	require.True(t, ok)
	assert.Equal(t, "param:voice.speed", n.ID)
}

func TestResolverCustomChain(t *testing.T) {
	ix := resolverIndex()
	r := NewResolver(MatchExactID)

	_, ok := r.Resolve(ix, "1")
	assert.False(t, ok)
}
