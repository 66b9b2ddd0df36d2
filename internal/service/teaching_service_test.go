package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"preset-teaching-be/internal/config"
	"preset-teaching-be/internal/dto"
	"preset-teaching-be/internal/entity"
	"preset-teaching-be/internal/pkg/logger"
	"preset-teaching-be/pkg/preset"
	"preset-teaching-be/pkg/teaching"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blueDressPlan = `<preset_teaching_plan decision="update">
  <edit><type>update</type><target_index>2</target_index><new_value>blue dress</new_value><reason>asked twice</reason></edit>
</preset_teaching_plan>`

func ayaDocument() preset.Document {
	return preset.Document{
		"meta":       map[string]interface{}{"name": "Aya"},
		"parameters": map[string]interface{}{"appearance": map[string]interface{}{"desc": "red dress"}},
	}
}

func testTeachingConfig() config.TeachingConfig {
	return config.TeachingConfig{
		Enabled:      true,
		Whitelist:    "all",
		BatchSize:    2,
		MaxItems:     10,
		MaxAttempts:  2,
		Timeout:      5 * time.Second,
		ExampleLimit: 2,
	}
}

type teachingFixture struct {
	store     *memStore
	provider  *stubProvider
	publisher *recordingPublisher
	queue     *teaching.Queue
	service   ITeachingService
	preset    *entity.Preset
}

func newTeachingFixture(t *testing.T, cfg config.TeachingConfig, provider *stubProvider) *teachingFixture {
	t.Helper()
	store := newMemStore()
	p := &entity.Preset{OwnerKey: "owner-1", SourceKey: "aya", Name: "Aya", Document: ayaDocument()}
	require.NoError(t, memPresets{store}.Create(context.Background(), p))

	log := logger.NewNopLogger()
	queue := teaching.NewQueue(log)
	pipeline := teaching.NewPipeline(
		teaching.NewProtocol(provider, nil, teaching.ProtocolConfig{MaxAttempts: cfg.MaxAttempts}),
		preset.DefaultIndexOptions(),
	)
	publisher := &recordingPublisher{}
	svc := NewTeachingService(memFactory{store}, pipeline, queue, publisher, cfg, log, log)
	t.Cleanup(svc.Stop)

	return &teachingFixture{store: store, provider: provider, publisher: publisher, queue: queue, service: svc, preset: p}
}

func flushOf(source string, lines ...string) teaching.Flush {
	return teaching.Flush{
		Key:    teaching.BatchKey{Scope: "room", Source: source},
		Items:  lines,
		Text:   teaching.FormatBatch(lines),
		Reason: teaching.FlushManual,
	}
}

func TestSubmitTurnGating(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.TeachingConfig)
		req      dto.SubmitTurnRequest
		accepted bool
		reason   string
	}{
		{
			name:   "disabled",
			mutate: func(c *config.TeachingConfig) { c.Enabled = false },
			req:    dto.SubmitTurnRequest{Scope: "room", Source: "aya", Text: "hi"},
			reason: RejectDisabled,
		},
		{
			name:   "whitelist off",
			mutate: func(c *config.TeachingConfig) { c.Whitelist = "off" },
			req:    dto.SubmitTurnRequest{Scope: "room", Source: "aya", Text: "hi"},
			reason: RejectNotWhitelisted,
		},
		{
			name:   "scope not listed",
			mutate: func(c *config.TeachingConfig) { c.Whitelist = "lobby,hall" },
			req:    dto.SubmitTurnRequest{Scope: "room", Source: "aya", Text: "hi"},
			reason: RejectNotWhitelisted,
		},
		{
			name:   "blank text",
			req:    dto.SubmitTurnRequest{Scope: "room", Source: "aya", Text: "   "},
			reason: RejectEmpty,
		},
		{
			name:     "listed scope",
			mutate:   func(c *config.TeachingConfig) { c.Whitelist = "lobby, room" },
			req:      dto.SubmitTurnRequest{Scope: "room", Source: "aya", Text: "hi"},
			accepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testTeachingConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			f := newTeachingFixture(t, cfg, &stubProvider{})

			res, err := f.service.SubmitTurn(context.Background(), "owner-1", &tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, res.Accepted)
			assert.Equal(t, tt.reason, res.Reason)
			if tt.accepted {
				assert.Equal(t, 1, res.Pending)
				assert.False(t, res.Flushed)
			}
		})
	}
}

func TestRunRoundUpdatesPreset(t *testing.T) {
	f := newTeachingFixture(t, testTeachingConfig(), &stubProvider{replies: []string{blueDressPlan}})

	round, err := f.service.RunRound(context.Background(), flushOf("aya", "wear the blue dress", "blue suits you"), TriggerBatch)
	require.NoError(t, err)
	require.NotNil(t, round)

	assert.Equal(t, teaching.StatusUpdated, round.Status)
	assert.Equal(t, 2, round.NodeCount)
	assert.Equal(t, 1, round.BeforeVersion)
	assert.Equal(t, 2, round.AfterVersion)
	require.Len(t, round.Applied, 1)
	assert.Equal(t, "red dress", round.Applied[0].Before)
	assert.Equal(t, "blue dress", round.Applied[0].After)

	stored := f.store.preset(f.preset.Id)
	assert.Equal(t, 2, stored.Version)
	desc, ok := preset.Lookup(stored.Document, "parameters.appearance.desc")
	require.True(t, ok)
	assert.Equal(t, "blue dress", desc)

	examples := f.store.exampleList()
	require.Len(t, examples, 1)
	assert.Contains(t, examples[0].InputXml, "blue suits you")
	assert.Contains(t, examples[0].PlanXml, "blue dress")

	require.Len(t, f.store.roundList(), 1)
	require.Equal(t, 1, f.publisher.count())
	var msg dto.PresetUpdatedMessage
	require.NoError(t, json.Unmarshal(f.publisher.payloads[0], &msg))
	assert.Equal(t, f.preset.Id, msg.PresetId)
	assert.Equal(t, 2, msg.Version)
	assert.Equal(t, "owner-1", msg.OwnerKey)
	assert.Equal(t, TriggerBatch, msg.Trigger)
}

func TestRunRoundWithoutChange(t *testing.T) {
	tests := []struct {
		name     string
		provider *stubProvider
		status   string
		attempts int
		hasError bool
	}{
		{
			name:     "no change decision",
			provider: &stubProvider{replies: []string{`<preset_teaching_plan decision="no_change"></preset_teaching_plan>`}},
			status:   teaching.StatusNoChange,
			attempts: 1,
		},
		{
			name:     "generator down",
			provider: &stubProvider{err: errors.New("connection refused")},
			status:   teaching.StatusChatError,
			attempts: 1,
			hasError: true,
		},
		{
			name:     "unparsable twice",
			provider: &stubProvider{replies: []string{"I think she should wear blue."}},
			status:   teaching.StatusPlanError,
			attempts: 2,
			hasError: true,
		},
		{
			name: "every edit fails",
			provider: &stubProvider{replies: []string{`<preset_teaching_plan decision="update">
  <edit><type>toggle</type><target_index>1</target_index></edit>
</preset_teaching_plan>`}},
			status:   teaching.StatusNoApplied,
			attempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTeachingFixture(t, testTeachingConfig(), tt.provider)

			round, err := f.service.RunRound(context.Background(), flushOf("aya", "hello"), TriggerBatch)
			require.NoError(t, err)
			require.NotNil(t, round)

			assert.Equal(t, tt.status, round.Status)
			assert.Equal(t, tt.attempts, round.Attempts)
			assert.Equal(t, tt.hasError, round.Error != "")
			assert.Equal(t, 1, round.AfterVersion)

			assert.Equal(t, ayaDocument(), f.store.preset(f.preset.Id).Document)
			assert.Len(t, f.store.roundList(), 1)
			assert.Empty(t, f.store.exampleList())
			assert.Equal(t, 0, f.publisher.count())
		})
	}
}

func TestRunRoundUnknownSource(t *testing.T) {
	provider := &stubProvider{replies: []string{blueDressPlan}}
	f := newTeachingFixture(t, testTeachingConfig(), provider)

	round, err := f.service.RunRound(context.Background(), flushOf("nobody", "hi"), TriggerBatch)
	require.NoError(t, err)
	assert.Nil(t, round)
	assert.Equal(t, 0, provider.callCount())
	assert.Empty(t, f.store.roundList())
}

func TestTurnsCannotTeachAnotherOwnersPreset(t *testing.T) {
	provider := &stubProvider{replies: []string{blueDressPlan}}
	f := newTeachingFixture(t, testTeachingConfig(), provider)
	f.service.Start(context.Background())
	ctx := context.Background()

	theirs := &entity.Preset{OwnerKey: "owner-2", SourceKey: "kai", Name: "Kai", Document: ayaDocument()}
	require.NoError(t, memPresets{f.store}.Create(ctx, theirs))

	for _, text := range []string{"wear blue", "blue, really"} {
		_, err := f.service.SubmitTurn(ctx, "owner-1", &dto.SubmitTurnRequest{Scope: "room", Source: "kai", Text: text})
		require.NoError(t, err)
	}
	// FIFO queue: once this job runs, the flushed round has finished.
	require.NoError(t, <-f.queue.Enqueue("barrier", func(context.Context) error { return nil }))

	flush := flushOf("kai", "wear blue")
	flush.Key.Owner = "owner-1"
	round, err := f.service.RunRound(ctx, flush, TriggerManual)
	require.NoError(t, err)
	assert.Nil(t, round)

	assert.Equal(t, 0, provider.callCount())
	assert.Empty(t, f.store.roundList())
	assert.Empty(t, f.store.exampleList())
	assert.Equal(t, 0, f.publisher.count())
	stored := f.store.preset(theirs.Id)
	assert.Equal(t, 1, stored.Version)
	assert.Equal(t, ayaDocument(), stored.Document)

	t.Run("owner can teach own preset", func(t *testing.T) {
		own := flushOf("kai", "wear blue")
		own.Key.Owner = "owner-2"
		round, err := f.service.RunRound(ctx, own, TriggerManual)
		require.NoError(t, err)
		require.NotNil(t, round)
		assert.Equal(t, teaching.StatusUpdated, round.Status)
	})
}

func TestRunRoundSendsStoredExamples(t *testing.T) {
	provider := &stubProvider{replies: []string{blueDressPlan}}
	cfg := testTeachingConfig()
	cfg.ExampleLimit = 1
	f := newTeachingFixture(t, cfg, provider)

	ctx := context.Background()
	for _, plan := range []string{"old-plan", "new-plan"} {
		require.NoError(t, memExamples{f.store}.Create(ctx, &entity.TeachingExample{
			PresetId: f.preset.Id, InputXml: "<input/>", PlanXml: plan,
		}))
	}

	_, err := f.service.RunRound(ctx, flushOf("aya", "blue please"), TriggerBatch)
	require.NoError(t, err)

	require.Equal(t, 1, provider.callCount())
	messages := provider.calls[0]
	require.Len(t, messages, 4)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "Preset: Aya")
	assert.Equal(t, "new-plan", messages[2].Content)
}

func TestSubmitTurnRunsRoundOnFlush(t *testing.T) {
	f := newTeachingFixture(t, testTeachingConfig(), &stubProvider{replies: []string{blueDressPlan}})
	f.service.Start(context.Background())
	ctx := context.Background()

	first, err := f.service.SubmitTurn(ctx, "owner-1", &dto.SubmitTurnRequest{Scope: "room", Source: "aya", Text: "wear blue"})
	require.NoError(t, err)
	assert.False(t, first.Flushed)

	second, err := f.service.SubmitTurn(ctx, "owner-1", &dto.SubmitTurnRequest{Scope: "room", Source: "aya", Text: "blue, really"})
	require.NoError(t, err)
	assert.True(t, second.Flushed)

	require.Eventually(t, func() bool {
		return len(f.store.roundList()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, f.store.preset(f.preset.Id).Version)
	assert.Equal(t, 0, f.service.Status().Buffers)
}

func TestFlushBatch(t *testing.T) {
	f := newTeachingFixture(t, testTeachingConfig(), &stubProvider{replies: []string{blueDressPlan}})
	f.service.Start(context.Background())
	ctx := context.Background()

	empty, err := f.service.FlushBatch(ctx, "owner-1", &dto.FlushBatchRequest{Scope: "room", Source: "aya"})
	require.NoError(t, err)
	assert.False(t, empty.Flushed)

	_, err = f.service.SubmitTurn(ctx, "owner-1", &dto.SubmitTurnRequest{Scope: "room", Source: "aya", Text: "wear blue"})
	require.NoError(t, err)

	res, err := f.service.FlushBatch(ctx, "owner-1", &dto.FlushBatchRequest{Scope: " room ", Source: "aya"})
	require.NoError(t, err)
	assert.True(t, res.Flushed)
	assert.Equal(t, 1, res.Items)

	require.Eventually(t, func() bool {
		rounds := f.store.roundList()
		return len(rounds) == 1 && rounds[0].Trigger == TriggerManual
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSweeperFlushesIdleBuffers(t *testing.T) {
	cfg := testTeachingConfig()
	cfg.BatchSize = 10
	cfg.BatchTTL = 20 * time.Millisecond
	cfg.SweepInterval = 5 * time.Millisecond
	f := newTeachingFixture(t, cfg, &stubProvider{replies: []string{blueDressPlan}})
	f.service.Start(context.Background())

	_, err := f.service.SubmitTurn(context.Background(), "owner-1", &dto.SubmitTurnRequest{Scope: "room", Source: "aya", Text: "wear blue"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rounds := f.store.roundList()
		return len(rounds) == 1 && rounds[0].Trigger == TriggerTTL
	}, 2*time.Second, 10*time.Millisecond)
}
