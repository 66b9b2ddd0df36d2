package memory

import (
	"testing"
	"time"

	"preset-teaching-be/internal/entity"
	"preset-teaching-be/pkg/preset"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetCache(t *testing.T) {
	c := NewPresetCache(time.Minute)
	p := &entity.Preset{
		Id:       uuid.New(),
		Name:     "Aria",
		Version:  3,
		Document: preset.Document{"meta": map[string]interface{}{"name": "Aria"}},
	}

	_, ok := c.Get(p.Id)
	assert.False(t, ok)

	c.Save(p)
	got, ok := c.Get(p.Id)
	require.True(t, ok)
	assert.Equal(t, 3, got.Version)

	t.Run("returned copy is detached", func(t *testing.T) {
		got.Document["meta"].(map[string]interface{})["name"] = "changed"
		again, _ := c.Get(p.Id)
		assert.Equal(t, "Aria", again.Document.Name())
	})

	t.Run("delete", func(t *testing.T) {
		c.Delete(p.Id)
		_, ok := c.Get(p.Id)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})
}
