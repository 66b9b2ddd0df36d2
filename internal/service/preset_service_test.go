package service

import (
	"context"
	"testing"
	"time"

	"preset-teaching-be/internal/dto"
	"preset-teaching-be/internal/pkg/logger"
	"preset-teaching-be/internal/repository/memory"
	"preset-teaching-be/pkg/preset"
	"preset-teaching-be/pkg/teaching"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type presetFixture struct {
	store     *memStore
	cache     *memory.PresetCache
	publisher *recordingPublisher
	service   IPresetService
}

func newPresetFixture(t *testing.T) *presetFixture {
	t.Helper()
	store := newMemStore()
	log := logger.NewNopLogger()
	queue := teaching.NewQueue(log)
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)

	pipeline := teaching.NewPipeline(teaching.NewProtocol(&stubProvider{}, nil, teaching.ProtocolConfig{}), preset.DefaultIndexOptions())
	cache := memory.NewPresetCache(time.Minute)
	publisher := &recordingPublisher{}
	return &presetFixture{
		store:     store,
		cache:     cache,
		publisher: publisher,
		service:   NewPresetService(memFactory{store}, cache, pipeline, queue, publisher, log),
	}
}

func (f *presetFixture) create(t *testing.T, owner string) *dto.PresetResponse {
	t.Helper()
	res, err := f.service.Create(context.Background(), owner, &dto.CreatePresetRequest{
		SourceKey: "aya-" + owner,
		Document:  ayaDocument(),
	})
	require.NoError(t, err)
	return res
}

func TestPresetCreateAndShow(t *testing.T) {
	f := newPresetFixture(t)
	ctx := context.Background()

	created := f.create(t, "owner-1")
	assert.Equal(t, "Aya", created.Name)
	assert.Equal(t, 1, created.Version)

	shown, err := f.service.Show(ctx, "owner-1", created.Id)
	require.NoError(t, err)
	assert.Equal(t, ayaDocument(), shown.Document)
	assert.Equal(t, 1, f.cache.Len())

	t.Run("other owner", func(t *testing.T) {
		_, err := f.service.Show(ctx, "owner-2", created.Id)
		assert.ErrorIs(t, err, ErrPresetNotFound)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := f.service.Show(ctx, "owner-1", uuid.New())
		assert.True(t, IsNotFound(err))
	})

	t.Run("duplicate source", func(t *testing.T) {
		_, err := f.service.Create(ctx, "owner-1", &dto.CreatePresetRequest{SourceKey: "aya-owner-1", Document: ayaDocument()})
		assert.ErrorIs(t, err, ErrDuplicateSource)
	})

	list, err := f.service.List(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Document)
}

func TestPresetNodes(t *testing.T) {
	f := newPresetFixture(t)
	created := f.create(t, "owner-1")

	res, err := f.service.Nodes(context.Background(), "owner-1", created.Id)
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)
	assert.Equal(t, "meta:name", res.Nodes[0].ID)
	assert.Equal(t, "param:appearance.desc", res.Nodes[1].ID)
	assert.Contains(t, res.InputXml, `id="param:appearance.desc"`)
}

func TestPresetPatch(t *testing.T) {
	f := newPresetFixture(t)
	ctx := context.Background()
	created := f.create(t, "owner-1")

	// warm the cache so the patch has to invalidate it
	_, err := f.service.Show(ctx, "owner-1", created.Id)
	require.NoError(t, err)

	req := &dto.PatchPresetRequest{Ops: []dto.PatchOperation{
		{Op: "update", Path: "parameters.appearance.desc", Value: "green coat"},
		{Op: "delete", Path: "parameters.missing"},
		{Op: "add", Path: "parameters.voice.speed", Value: 1.2},
	}}

	t.Run("dry run", func(t *testing.T) {
		dry := *req
		dry.DryRun = true
		res, err := f.service.Patch(ctx, "owner-1", created.Id, &dry)
		require.NoError(t, err)
		assert.False(t, res.Updated)
		assert.Len(t, res.Applied, 2)
		assert.Len(t, res.Failed, 1)
		assert.Equal(t, 1, f.store.preset(created.Id).Version)
		assert.Empty(t, f.store.roundList())
	})

	res, err := f.service.Patch(ctx, "owner-1", created.Id, req)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, 2, res.Version)
	assert.Len(t, res.Applied, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "parameters.missing", res.Failed[0].Path)

	shown, err := f.service.Show(ctx, "owner-1", created.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, shown.Version)
	speed, ok := preset.Lookup(shown.Document, "parameters.voice.speed")
	require.True(t, ok)
	assert.Equal(t, 1.2, speed)

	rounds, err := f.service.Rounds(ctx, "owner-1", created.Id, &dto.ListRoundsRequest{})
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, TriggerPatch, rounds[0].Trigger)
	assert.Equal(t, teaching.StatusUpdated, rounds[0].Status)
	assert.Equal(t, 1, f.publisher.count())
}

func TestPresetPatchNothingApplied(t *testing.T) {
	f := newPresetFixture(t)
	created := f.create(t, "owner-1")

	res, err := f.service.Patch(context.Background(), "owner-1", created.Id, &dto.PatchPresetRequest{
		Ops: []dto.PatchOperation{{Op: "toggle", Path: "meta.name"}},
	})
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.Equal(t, 1, res.Version)
	assert.Len(t, res.Failed, 1)
	assert.Equal(t, 0, f.publisher.count())

	rounds := f.store.roundList()
	require.Len(t, rounds, 1)
	assert.Equal(t, teaching.StatusNoApplied, rounds[0].Status)
}

func TestPresetReplace(t *testing.T) {
	f := newPresetFixture(t)
	ctx := context.Background()
	created := f.create(t, "owner-1")

	doc := map[string]interface{}{"meta": map[string]interface{}{"name": "Aya II"}}

	_, err := f.service.Replace(ctx, "owner-1", created.Id, &dto.ReplacePresetRequest{Document: doc, Version: 7})
	assert.ErrorIs(t, err, ErrVersionConflict)

	res, err := f.service.Replace(ctx, "owner-1", created.Id, &dto.ReplacePresetRequest{Document: doc, Version: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Version)
	assert.Equal(t, "Aya II", res.Name)
	assert.Equal(t, 1, f.publisher.count())

	require.NoError(t, f.service.Delete(ctx, "owner-1", created.Id))
	_, err = f.service.Show(ctx, "owner-1", created.Id)
	assert.ErrorIs(t, err, ErrPresetNotFound)
}
