package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"evidentia/internal/config"
	"evidentia/internal/logging"
	"evidentia/internal/queue"
	"evidentia/internal/services"
	"evidentia/internal/stage"
)

// pipelineStage binds a claimable start status to the handler that advances
// it and the status recorded on success.
type pipelineStage struct {
	name       string
	start      queue.Status
	processing queue.Status
	done       queue.Status
	handler    stage.Handler
}

// Manager coordinates queue processing across a bounded worker pool.
type Manager struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger

	stages       []pipelineStage
	byProcessing map[queue.Status]pipelineStage

	pollInterval  time.Duration
	retryInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a manager with the standard stage set.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, stages Stages) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	pipeline := []pipelineStage{
		{
			name:       "extract",
			start:      queue.StatusPending,
			processing: queue.StatusExtracting,
			done:       queue.StatusExtracted,
			handler:    stages.Extract,
		},
		{
			name:       "transcribe",
			start:      queue.StatusExtracted,
			processing: queue.StatusTranscribing,
			done:       queue.StatusTranscribed,
			handler:    stages.Transcribe,
		},
		{
			name:       "summarize",
			start:      queue.StatusTranscribed,
			processing: queue.StatusSummarizing,
			done:       queue.StatusReady,
			handler:    stages.Summarize,
		},
	}

	m := &Manager{
		cfg:           cfg,
		store:         store,
		logger:        logger.With(logging.String(logging.FieldComponent, "workflow")),
		stages:        pipeline,
		byProcessing:  make(map[queue.Status]pipelineStage, len(pipeline)),
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
	}
	for _, ps := range pipeline {
		m.byProcessing[ps.processing] = ps
	}
	return m
}

// Stages carries the handler for each pipeline stage.
type Stages struct {
	Extract    stage.Handler
	Transcribe stage.Handler
	Summarize  stage.Handler
}

// Start recovers interrupted items, runs the stage preflight, and launches
// the worker pool. It returns once workers are running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}

	if err := m.recoverInterrupted(ctx); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("recover interrupted items: %w", err)
	}
	transitions := m.claimableTransitions(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Workflow.MaxConcurrentItems
	if workers < 1 {
		workers = 1
	}
	m.wg.Add(workers)
	m.mu.Unlock()

	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i, transitions)
	}
	m.logger.Info("workflow started",
		logging.Int("workers", workers),
		logging.String(logging.FieldEventType, "workflow_start"),
	)
	return nil
}

// Stop terminates background processing and waits for workers to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

// LastError returns the most recent processing error, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// ProcessOnce drains the queue synchronously: it claims and processes items
// until no claimable work remains, then returns. Used by the one-shot CLI
// command; the watch daemon uses Start instead.
func (m *Manager) ProcessOnce(ctx context.Context) error {
	if err := m.recoverInterrupted(ctx); err != nil {
		return fmt.Errorf("recover interrupted items: %w", err)
	}
	transitions := m.claimableTransitions(ctx)

	workers := m.cfg.Workflow.MaxConcurrentItems
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				item, err := m.store.ClaimNext(ctx, transitions)
				if err != nil {
					m.setLastError(err)
					m.logger.Error("failed to claim next item",
						logging.Error(err),
						logging.String(logging.FieldEventType, "claim_failed"),
					)
					return
				}
				if item == nil {
					return
				}
				m.processItem(ctx, item)
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (m *Manager) runWorker(ctx context.Context, id int, transitions []queue.StageTransition) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := m.store.ClaimNext(ctx, transitions)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("failed to claim next item",
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_failed"),
			)
			m.waitOrShutdown(ctx, m.retryInterval)
			continue
		}
		if item == nil {
			m.waitOrShutdown(ctx, m.pollInterval)
			continue
		}

		m.processItem(ctx, item)
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// processItem runs exactly one stage for a freshly claimed item. The item
// arrives already moved to the stage's processing status.
func (m *Manager) processItem(ctx context.Context, item *queue.Item) {
	ps, ok := m.byProcessing[item.Status]
	if !ok {
		m.logger.Warn("no stage configured for status", logging.String("status", string(item.Status)))
		return
	}

	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(ctx, requestID)
	stageCtx = services.WithItemID(stageCtx, item.ID)
	stageCtx = services.WithStage(stageCtx, ps.name)
	logger := logging.WithContext(stageCtx, m.logger)

	start := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("item_name", item.Name),
	)

	if err := ps.handler.Prepare(stageCtx, item); err != nil {
		m.handleStageFailure(stageCtx, logger, ps, item, err)
		return
	}
	if err := ps.handler.Execute(stageCtx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("stage interrupted by shutdown")
			return
		}
		m.handleStageFailure(stageCtx, logger, ps, item, err)
		return
	}

	if item.Status == ps.processing {
		item.Status = ps.done
	}
	if item.Status == queue.StatusReady {
		// The audio artifact has served its purpose once the item is ready.
		m.cleanupArtifact(logger, item)
	}
	if err := m.store.Update(stageCtx, item); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		m.setLastError(wrapped)
		logger.Error("failed to persist stage result", logging.Error(wrapped))
		return
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(item.Status)),
		logging.Duration("stage_duration", time.Since(start)),
	)
}

func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, ps pipelineStage, item *queue.Item, stageErr error) {
	details := services.Details(stageErr)
	message := details.Message
	if message == "" {
		message = fmt.Sprintf("%s stage failed", ps.name)
	}
	item.SetFailed(message)
	m.cleanupArtifact(logger, item)

	attrs := []logging.Attr{
		logging.String("error_message", message),
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.String(logging.FieldEventType, "stage_failure"),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	}
	logger.Error("stage failed", logging.Args(attrs...)...)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	m.setLastError(stageErr)
}

// Health gathers stage health plus queue statistics.
func (m *Manager) Health(ctx context.Context) ([]stage.Health, queue.HealthSummary, error) {
	var healths []stage.Health
	for _, ps := range m.stages {
		healths = append(healths, ps.handler.HealthCheck(ctx))
	}
	summary, err := m.store.Health(ctx)
	return healths, summary, err
}

// claimableTransitions builds the claim set from stages whose preflight
// passes. Items bound for an unhealthy stage stay where they are until the
// configuration is fixed, instead of the whole batch failing with the same
// message.
func (m *Manager) claimableTransitions(ctx context.Context) []queue.StageTransition {
	transitions := make([]queue.StageTransition, 0, len(m.stages))
	for _, ps := range m.stages {
		health := ps.handler.HealthCheck(ctx)
		if !health.Ready {
			m.logger.Warn("stage not ready; its items will wait",
				logging.String(logging.FieldStage, health.Name),
				logging.String("detail", health.Detail),
				logging.String(logging.FieldEventType, "stage_unhealthy"),
			)
			continue
		}
		transitions = append(transitions, queue.StageTransition{From: ps.start, To: ps.processing})
	}
	return transitions
}
