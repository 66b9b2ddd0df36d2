package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTeachingDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 3, cfg.Teaching.BatchSize)
	assert.Equal(t, 10, cfg.Teaching.MaxItems)
	assert.Equal(t, 2, cfg.Teaching.MaxAttempts)
	assert.Equal(t, 90*time.Second, cfg.Teaching.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Teaching.BatchTTL)
}

func TestLoadTeachingOverrides(t *testing.T) {
	t.Setenv("TEACH_ENABLED", "false")
	t.Setenv("TEACH_WHITELIST", "g1,g2")
	t.Setenv("TEACH_BATCH_SIZE", "5")
	t.Setenv("TEACH_BATCH_TTL", "120")
	t.Setenv("TEACH_TIMEOUT", "45s")
	t.Setenv("TEACH_BATCH_MAX_CHARS", "not-a-number")

	cfg := Load()

	assert.False(t, cfg.Teaching.Enabled)
	assert.Equal(t, "g1,g2", cfg.Teaching.Whitelist)
	assert.Equal(t, 5, cfg.Teaching.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.Teaching.BatchTTL)
	assert.Equal(t, 45*time.Second, cfg.Teaching.Timeout)
	assert.Equal(t, 0, cfg.Teaching.MaxChars)
}
