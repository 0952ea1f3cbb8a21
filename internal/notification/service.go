package notification

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
	_ "time/tzdata"

	auditdomain "github.com/smallbiznis/repairdesk/internal/audit/domain"
	"github.com/smallbiznis/repairdesk/internal/config"
	"github.com/smallbiznis/repairdesk/internal/observability/logger"
	"github.com/smallbiznis/repairdesk/internal/observability/metrics"
	"github.com/smallbiznis/repairdesk/internal/providers/telegram"
	"github.com/smallbiznis/repairdesk/internal/request/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 100
	defaultWorkers   = 2
	defaultTimeout   = 10 * time.Second
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle `optional:"true"`
	Log       *zap.Logger
	Config    config.Config
	Provider  telegram.Provider
	Metrics   *metrics.NotifierMetrics
	AuditSvc  auditdomain.Service `optional:"true"`
}

type job struct {
	ctx    context.Context
	record domain.Record
}

// Service forwards persisted requests to the staff chat through a bounded
// queue. Notify never blocks and never reports failure to the caller.
type Service struct {
	log      *zap.Logger
	provider telegram.Provider
	metrics  *metrics.NotifierMetrics
	auditSvc auditdomain.Service
	chatID   string
	loc      *time.Location
	timeout  time.Duration
	workers  int
	skip     bool

	mu     sync.RWMutex
	queue  chan job
	closed bool
	wg     sync.WaitGroup
}

func New(p Params) (*Service, error) {
	loc, err := time.LoadLocation(p.Config.Notify.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load notify timezone %q: %w", p.Config.Notify.Timezone, err)
	}

	queueSize := p.Config.Notify.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	workers := p.Config.Notify.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	timeout := p.Config.Telegram.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	_, skip := p.Provider.(*telegram.NoOpProvider)

	s := &Service{
		log:      p.Log.Named("notification.service"),
		provider: p.Provider,
		metrics:  p.Metrics,
		auditSvc: p.AuditSvc,
		chatID:   p.Config.Telegram.ChatID,
		loc:      loc,
		timeout:  timeout,
		workers:  workers,
		skip:     skip,
		queue:    make(chan job, queueSize),
	}

	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error {
				s.Start()
				return nil
			},
			OnStop: s.Stop,
		})
	}
	return s, nil
}

// Start launches the delivery workers.
func (s *Service) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Stop refuses new notifications and waits for queued ones until ctx ends.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("notification queue not drained before shutdown", zap.Int("pending", len(s.queue)))
		return nil
	}
}

// Notify queues record for delivery. A full or stopped queue drops it.
func (s *Service) Notify(ctx context.Context, record domain.Record) {
	if s.skip {
		s.metrics.RecordDelivery(metrics.NotifySkipped, 0)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(ctx, record, "stopped")
		return
	}

	select {
	case s.queue <- job{ctx: context.WithoutCancel(ctx), record: record}:
		s.metrics.SetQueueDepth(len(s.queue))
	default:
		s.drop(ctx, record, "queue_full")
	}
}

func (s *Service) drop(ctx context.Context, record domain.Record, reason string) {
	s.metrics.RecordDelivery(metrics.NotifyDropped, 0)
	logger.WithContext(ctx, s.log).Warn("notification dropped",
		zap.Int64("request_id", record.ID),
		zap.String("reason", reason),
	)
}

func (s *Service) worker() {
	defer s.wg.Done()
	for j := range s.queue {
		s.metrics.SetQueueDepth(len(s.queue))
		s.deliver(j)
	}
}

func (s *Service) deliver(j job) {
	log := logger.WithContext(j.ctx, s.log).With(zap.Int64("request_id", j.record.ID))
	start := time.Now()

	err := s.send(j)
	elapsed := time.Since(start)
	if err == nil {
		s.metrics.RecordDelivery(metrics.NotifyDelivered, elapsed)
		log.Debug("notification delivered", zap.Duration("elapsed", elapsed))
		return
	}

	s.metrics.RecordDelivery(metrics.NotifyFailed, elapsed)
	log.Warn("notification failed", zap.Duration("elapsed", elapsed), zap.Error(err))

	if s.auditSvc != nil {
		targetID := strconv.FormatInt(j.record.ID, 10)
		_ = s.auditSvc.AuditLog(j.ctx, auditdomain.ActionNotificationFailed, auditdomain.TargetTypeRequest, &targetID, map[string]any{
			"error": err.Error(),
		})
	}
}

func (s *Service) send(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification panic: %v", r)
		}
	}()

	createdAt, parseErr := time.Parse(domain.CreatedAtLayout, j.record.CreatedAt)
	if parseErr != nil {
		createdAt = time.Now().UTC()
	}
	message := Format(j.record.Submission(), createdAt, s.loc)

	ctx, cancel := context.WithTimeout(j.ctx, s.timeout)
	defer cancel()
	return s.provider.PostMessage(ctx, s.chatID, message)
}
