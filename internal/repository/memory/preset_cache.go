package memory

import (
	"time"

	"preset-teaching-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// PresetCache keeps recently read presets by id. Entries are copies, so
// callers may mutate what they get back.
type PresetCache struct {
	cache *cache.Cache
}

func NewPresetCache(ttl time.Duration) *PresetCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PresetCache{cache: cache.New(ttl, 2*ttl)}
}

func (c *PresetCache) Save(p *entity.Preset) {
	if p == nil {
		return
	}
	c.cache.Set(p.Id.String(), copyPreset(p), cache.DefaultExpiration)
}

func (c *PresetCache) Get(id uuid.UUID) (*entity.Preset, bool) {
	x, found := c.cache.Get(id.String())
	if !found {
		return nil, false
	}
	return copyPreset(x.(*entity.Preset)), true
}

func (c *PresetCache) Delete(id uuid.UUID) {
	c.cache.Delete(id.String())
}

func (c *PresetCache) Len() int {
	return c.cache.ItemCount()
}

func copyPreset(p *entity.Preset) *entity.Preset {
	out := *p
	out.Document = p.Document.Clone()
	return &out
}
