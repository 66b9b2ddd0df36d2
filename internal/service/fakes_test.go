package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"preset-teaching-be/internal/entity"
	"preset-teaching-be/internal/repository/contract"
	"preset-teaching-be/internal/repository/specification"
	"preset-teaching-be/internal/repository/unitofwork"
	"preset-teaching-be/pkg/llm"

	"github.com/google/uuid"
)

// memStore backs the fake repositories. Writes are visible immediately;
// transactions only track begin/commit pairing.
type memStore struct {
	mu       sync.Mutex
	presets  map[uuid.UUID]*entity.Preset
	examples []*entity.TeachingExample
	rounds   []*entity.TeachingRound
}

func newMemStore() *memStore {
	return &memStore{presets: map[uuid.UUID]*entity.Preset{}}
}

func (m *memStore) preset(id uuid.UUID) *entity.Preset {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presets[id]
	if !ok {
		return nil
	}
	out := *p
	out.Document = p.Document.Clone()
	return &out
}

func (m *memStore) roundList() []*entity.TeachingRound {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.TeachingRound(nil), m.rounds...)
}

func (m *memStore) exampleList() []*entity.TeachingExample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.TeachingExample(nil), m.examples...)
}

type memFactory struct{ store *memStore }

func (f memFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &memUoW{store: f.store}
}

type memUoW struct {
	store *memStore
	inTx  bool
}

func (u *memUoW) Begin(ctx context.Context) error {
	if u.inTx {
		return errors.New("transaction already started")
	}
	u.inTx = true
	return nil
}

func (u *memUoW) Commit() error {
	if !u.inTx {
		return errors.New("no active transaction")
	}
	u.inTx = false
	return nil
}

func (u *memUoW) Rollback() error {
	if !u.inTx {
		return errors.New("no active transaction")
	}
	u.inTx = false
	return nil
}

func (u *memUoW) PresetRepository() contract.PresetRepository {
	return memPresets{u.store}
}

func (u *memUoW) TeachingExampleRepository() contract.TeachingExampleRepository {
	return memExamples{u.store}
}

func (u *memUoW) TeachingRoundRepository() contract.TeachingRoundRepository {
	return memRounds{u.store}
}

type memPresets struct{ s *memStore }

func matchPreset(p *entity.Preset, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch sp := spec.(type) {
		case specification.ByID:
			if p.Id != sp.ID {
				return false
			}
		case specification.ByOwner:
			if p.OwnerKey != sp.OwnerKey {
				return false
			}
		case specification.BySource:
			if p.SourceKey != sp.SourceKey {
				return false
			}
		}
	}
	return true
}

func (r memPresets) Create(ctx context.Context, p *entity.Preset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.presets {
		if existing.SourceKey == p.SourceKey {
			return contract.ErrDuplicateSource
		}
	}
	if p.Id == uuid.Nil {
		p.Id = uuid.New()
	}
	if p.Version == 0 {
		p.Version = 1
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	stored.Document = p.Document.Clone()
	r.s.presets[p.Id] = &stored
	return nil
}

func (r memPresets) UpdateDocument(ctx context.Context, p *entity.Preset, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.presets[p.Id]
	if !ok || stored.Version != expectedVersion {
		return contract.ErrVersionConflict
	}
	stored.Document = p.Document.Clone()
	stored.Name = p.Name
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = time.Now()
	p.Version = stored.Version
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r memPresets) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Preset, error) {
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r memPresets) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Preset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Preset
	for _, p := range r.s.presets {
		if matchPreset(p, specs) {
			cp := *p
			cp.Document = p.Document.Clone()
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memPresets) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.presets, id)
	return nil
}

type memExamples struct{ s *memStore }

func (r memExamples) Create(ctx context.Context, ex *entity.TeachingExample) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ex.Id == uuid.Nil {
		ex.Id = uuid.New()
	}
	cp := *ex
	r.s.examples = append(r.s.examples, &cp)
	return nil
}

func (r memExamples) FindRecent(ctx context.Context, presetId uuid.UUID, limit int) ([]*entity.TeachingExample, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.TeachingExample
	for _, ex := range r.s.examples {
		if ex.PresetId == presetId {
			out = append(out, ex)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type memRounds struct{ s *memStore }

func (r memRounds) Create(ctx context.Context, round *entity.TeachingRound) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if round.Id == uuid.Nil {
		round.Id = uuid.New()
	}
	round.CreatedAt = time.Now()
	cp := *round
	r.s.rounds = append(r.s.rounds, &cp)
	return nil
}

func (r memRounds) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.TeachingRound, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.TeachingRound
	for _, round := range r.s.rounds {
		keep := true
		for _, spec := range specs {
			switch sp := spec.(type) {
			case specification.ByPreset:
				keep = keep && round.PresetId == sp.PresetId
			case specification.ByRoundStatus:
				keep = keep && (sp.Status == "" || round.Status == sp.Status)
			}
		}
		if keep {
			out = append(out, round)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *recordingPublisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

type stubProvider struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]llm.Message
}

func (s *stubProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]llm.Message(nil), history...))
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("no reply left")
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

func (s *stubProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
