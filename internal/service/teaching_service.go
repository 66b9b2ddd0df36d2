package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"preset-teaching-be/internal/config"
	"preset-teaching-be/internal/dto"
	"preset-teaching-be/internal/entity"
	"preset-teaching-be/internal/pkg/logger"
	"preset-teaching-be/internal/repository/specification"
	"preset-teaching-be/internal/repository/unitofwork"
	"preset-teaching-be/pkg/teaching"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const auditModule = "TEACHING_ROUND"

// Reasons a turn is not buffered.
const (
	RejectDisabled       = "disabled"
	RejectNotWhitelisted = "not_whitelisted"
	RejectEmpty          = "empty"
)

type ITeachingService interface {
	// An empty ownerKey marks a trusted internal caller that may teach any preset.
	SubmitTurn(ctx context.Context, ownerKey string, req *dto.SubmitTurnRequest) (*dto.SubmitTurnResponse, error)
	FlushBatch(ctx context.Context, ownerKey string, req *dto.FlushBatchRequest) (*dto.FlushBatchResponse, error)
	RunRound(ctx context.Context, flush teaching.Flush, trigger string) (*entity.TeachingRound, error)
	Audit(ctx context.Context, ownerKey string, req *dto.AuditLogRequest) (*dto.AuditLogResponse, error)
	Status() *dto.TeachingStatusResponse
	Start(ctx context.Context)
	Stop()
}

type teachingService struct {
	uowFactory unitofwork.RepositoryFactory
	pipeline   *teaching.Pipeline
	queue      *teaching.Queue
	batches    *teaching.Accumulator
	whitelist  teaching.Whitelist
	publisher  IPublisherService
	cfg        config.TeachingConfig
	logger     logger.ILogger
	audit      logger.ILogger

	stopSweep context.CancelFunc
	sweepDone chan struct{}
	mu        sync.Mutex
}

func NewTeachingService(
	uowFactory unitofwork.RepositoryFactory,
	pipeline *teaching.Pipeline,
	queue *teaching.Queue,
	publisher IPublisherService,
	cfg config.TeachingConfig,
	log logger.ILogger,
	audit logger.ILogger,
) ITeachingService {
	return &teachingService{
		uowFactory: uowFactory,
		pipeline:   pipeline,
		queue:      queue,
		batches: teaching.NewAccumulator(teaching.BatchConfig{
			BatchSize: cfg.BatchSize,
			MaxItems:  cfg.MaxItems,
			MaxChars:  cfg.MaxChars,
			TTL:       cfg.BatchTTL,
		}),
		whitelist: teaching.ParseWhitelist(cfg.Whitelist),
		publisher: publisher,
		cfg:       cfg,
		logger:    log,
		audit:     audit,
	}
}

func batchKey(owner, scope, chatKind, participant, source string) teaching.BatchKey {
	return teaching.BatchKey{
		Owner:       owner,
		Scope:       strings.TrimSpace(scope),
		ChatKind:    strings.TrimSpace(chatKind),
		Participant: strings.TrimSpace(participant),
		Source:      strings.TrimSpace(source),
	}
}

func (s *teachingService) SubmitTurn(ctx context.Context, ownerKey string, req *dto.SubmitTurnRequest) (*dto.SubmitTurnResponse, error) {
	key := batchKey(ownerKey, req.Scope, req.ChatKind, req.Participant, req.Source)
	res := &dto.SubmitTurnResponse{BatchKey: key.String()}

	switch {
	case !s.cfg.Enabled:
		res.Reason = RejectDisabled
		return res, nil
	case !s.whitelist.Allows(key.Scope):
		res.Reason = RejectNotWhitelisted
		return res, nil
	case strings.TrimSpace(req.Text) == "":
		res.Reason = RejectEmpty
		return res, nil
	}

	res.Accepted = true
	flush, ok := s.batches.Push(key, req.Text)
	if !ok {
		res.Pending = s.batches.Pending(key)
		return res, nil
	}
	res.Flushed = true
	s.schedule(*flush, TriggerBatch)
	return res, nil
}

func (s *teachingService) FlushBatch(ctx context.Context, ownerKey string, req *dto.FlushBatchRequest) (*dto.FlushBatchResponse, error) {
	key := batchKey(ownerKey, req.Scope, req.ChatKind, req.Participant, req.Source)
	flush, ok := s.batches.FlushKey(key)
	if !ok {
		return &dto.FlushBatchResponse{}, nil
	}
	s.schedule(*flush, TriggerManual)
	return &dto.FlushBatchResponse{Flushed: true, Items: len(flush.Items), Reason: flush.Reason}, nil
}

// schedule queues a round behind every round already waiting.
func (s *teachingService) schedule(flush teaching.Flush, trigger string) {
	s.logger.Info("TEACHING", "Batch flushed", map[string]interface{}{
		"batch_key": flush.Key.String(),
		"items":     len(flush.Items),
		"reason":    flush.Reason,
	})
	s.queue.Enqueue("round "+flush.Key.String(), func(ctx context.Context) error {
		_, err := s.RunRound(ctx, flush, trigger)
		return err
	})
}

// RunRound executes one teaching round against the live preset. A nil round
// with a nil error means no preset exists for the batch source.
func (s *teachingService) RunRound(ctx context.Context, flush teaching.Flush, trigger string) (*entity.TeachingRound, error) {
	started := time.Now()
	ctx, span := otel.Tracer("teaching").Start(ctx, "teaching.round")
	defer span.End()
	span.SetAttributes(
		attribute.String("teaching.batch_key", flush.Key.String()),
		attribute.Int("teaching.items", len(flush.Items)),
		attribute.String("teaching.trigger", trigger),
	)

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	current, err := uow.PresetRepository().FindOne(ctx, presetFor(flush.Key)...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load preset for %q: %w", flush.Key.Source, err)
	}
	if current == nil {
		s.logger.Warn("TEACHING", "No preset for batch source", map[string]interface{}{"source": flush.Key.Source, "owner_key": flush.Key.Owner})
		return nil, nil
	}

	stored, err := uow.TeachingExampleRepository().FindRecent(ctx, current.Id, s.cfg.ExampleLimit)
	if err != nil {
		return nil, fmt.Errorf("load teaching examples: %w", err)
	}
	examples := make([]teaching.Example, 0, len(stored))
	for _, ex := range stored {
		examples = append(examples, teaching.Example{InputXML: ex.InputXml, PlanXML: ex.PlanXml})
	}

	result := s.pipeline.Run(ctx, current.Document, teaching.Request{
		SystemContext: systemContext(current, flush.Key),
		Conversation:  flush.Text,
		Examples:      examples,
	})

	round := &entity.TeachingRound{
		PresetId:      current.Id,
		BatchKey:      flush.Key.String(),
		Trigger:       trigger,
		Status:        result.Status,
		NodeCount:     result.NodeCount,
		Attempts:      result.Attempts,
		Applied:       outcomes(result.Patch.Applied),
		Failed:        outcomes(result.Patch.Failed),
		BeforeMeta:    metaOf(current.Document),
		BeforeVersion: current.Version,
		AfterVersion:  current.Version,
		Conversation:  flush.Text,
		RawReply:      result.Raw,
	}
	if result.Plan != nil {
		round.Unknown = result.Plan.Unknown
	}
	if result.Err != nil {
		round.Error = result.Err.Error()
		span.SetStatus(codes.Error, result.Status)
	}

	round.DurationMs = time.Since(started).Milliseconds()

	if result.Updated {
		round.AfterMeta = metaOf(result.Document)
		err = commitChange(ctx, s.uowFactory, presetChange{
			preset:   current,
			document: result.Document,
			round:    round,
			example: &entity.TeachingExample{
				InputXml: result.InputXML,
				PlanXml:  teaching.RenderPlanXML(result.Plan),
			},
		})
		if err != nil && round.Status != StatusConflict {
			span.RecordError(err)
			return nil, fmt.Errorf("persist teaching round: %w", err)
		}
	} else {
		if err := uow.TeachingRoundRepository().Create(ctx, round); err != nil {
			return nil, fmt.Errorf("record teaching round: %w", err)
		}
	}

	if round.Status == teaching.StatusUpdated {
		announce(ctx, s.publisher, s.logger, current, round)
	}
	s.writeAudit(current.OwnerKey, round)
	span.SetAttributes(attribute.String("teaching.status", round.Status))
	return round, nil
}

// presetFor scopes the source lookup to the batch owner when one is bound.
func presetFor(key teaching.BatchKey) []specification.Specification {
	specs := []specification.Specification{specification.BySource{SourceKey: key.Source}}
	if key.Owner != "" {
		specs = append(specs, specification.ByOwner{OwnerKey: key.Owner})
	}
	return specs
}

func systemContext(p *entity.Preset, key teaching.BatchKey) string {
	var b strings.Builder
	if p.Name != "" {
		fmt.Fprintf(&b, "Preset: %s\n", p.Name)
	}
	if key.ChatKind != "" {
		fmt.Fprintf(&b, "Conversation kind: %s\n", key.ChatKind)
	}
	return strings.TrimSpace(b.String())
}

func (s *teachingService) writeAudit(ownerKey string, round *entity.TeachingRound) {
	details := map[string]interface{}{
		"owner_key":      ownerKey,
		"round_id":       round.Id.String(),
		"preset_id":      round.PresetId.String(),
		"batch_key":      round.BatchKey,
		"trigger":        round.Trigger,
		"status":         round.Status,
		"node_count":     round.NodeCount,
		"attempts":       round.Attempts,
		"applied":        round.Applied,
		"failed":         round.Failed,
		"unknown":        round.Unknown,
		"before_meta":    round.BeforeMeta,
		"after_meta":     round.AfterMeta,
		"before_version": round.BeforeVersion,
		"after_version":  round.AfterVersion,
		"duration_ms":    round.DurationMs,
	}
	switch round.Status {
	case teaching.StatusUpdated, teaching.StatusNoChange, teaching.StatusNoNodes:
		s.audit.Info(auditModule, "Teaching round finished", details)
	default:
		details["error"] = round.Error
		s.audit.Warn(auditModule, "Teaching round made no change", details)
	}
}

func (s *teachingService) Audit(ctx context.Context, ownerKey string, req *dto.AuditLogRequest) (*dto.AuditLogResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}
	entries, err := s.audit.GetLogs(logger.LogFilter{Level: req.Level, Module: auditModule, Owner: ownerKey}, limit, req.Offset)
	if err != nil {
		return nil, err
	}
	return &dto.AuditLogResponse{Entries: entries, Limit: limit, Offset: req.Offset}, nil
}

func (s *teachingService) Status() *dto.TeachingStatusResponse {
	return &dto.TeachingStatusResponse{
		Enabled:   s.cfg.Enabled,
		Whitelist: s.whitelist.String(),
		Queued:    s.queue.Len(),
		Buffers:   s.batches.Keys(),
	}
}

// Start runs the round queue and, when a batch TTL is set, the sweeper that
// flushes idle buffers.
func (s *teachingService) Start(ctx context.Context) {
	s.queue.Start(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.BatchTTL <= 0 || s.stopSweep != nil {
		return
	}
	interval := s.cfg.SweepInterval
	if interval <= 0 || interval > s.cfg.BatchTTL {
		interval = s.cfg.BatchTTL
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	s.stopSweep = cancel
	s.sweepDone = make(chan struct{})
	go s.sweep(sweepCtx, interval, s.sweepDone)
}

func (s *teachingService) sweep(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, flush := range s.batches.FlushExpired() {
				s.schedule(flush, TriggerTTL)
			}
		}
	}
}

func (s *teachingService) Stop() {
	s.mu.Lock()
	cancel, done := s.stopSweep, s.sweepDone
	s.stopSweep, s.sweepDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.queue.Stop()
}
