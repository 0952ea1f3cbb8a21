package service

import (
	"context"
	"fmt"
	"strconv"

	auditdomain "github.com/smallbiznis/repairdesk/internal/audit/domain"
	"github.com/smallbiznis/repairdesk/internal/observability/logger"
	"github.com/smallbiznis/repairdesk/internal/observability/metrics"
	"github.com/smallbiznis/repairdesk/internal/request/domain"
	"github.com/smallbiznis/repairdesk/internal/request/validation"
	"github.com/smallbiznis/repairdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	Notifier domain.Notifier
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	notifier domain.Notifier
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("request.service"),
		repo:     p.Repo,
		notifier: p.Notifier,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

// Submit validates, persists and then hands the record to the notifier.
// A nil error means the record is committed; it says nothing about delivery.
func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.Ack, error) {
	log := logger.WithContext(ctx, s.log)

	sub, err := validation.Validate(req.Fields)
	if err != nil {
		s.metrics.RecordSubmission(ctx, metrics.OutcomeInvalid, string(domain.ReasonMissingRequired))
		log.Info("submission rejected", zap.Error(err))
		return domain.Ack{}, err
	}

	// Once accepted, the write is not abandoned if the client goes away.
	writeCtx := context.WithoutCancel(ctx)

	record := domain.NewRecord(sub, req.SourceIP, req.UserAgent)
	if err := s.repo.Insert(writeCtx, s.db, &record); err != nil {
		kind := db.Classify(err)
		s.metrics.RecordSubmission(ctx, metrics.OutcomeFailed, kind)
		log.Error("failed to persist submission", zap.String("error_kind", kind), zap.Error(err))
		return domain.Ack{}, fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
	}

	if s.auditSvc != nil {
		targetID := strconv.FormatInt(record.ID, 10)
		if err := s.auditSvc.AuditLog(writeCtx, auditdomain.ActionRequestCreated, auditdomain.TargetTypeRequest, &targetID, map[string]any{
			"brand":      record.Brand,
			"created_at": record.CreatedAt,
		}); err != nil {
			log.Warn("audit request.created failed", zap.Int64("request_id", record.ID), zap.Error(err))
		}
	}

	if s.notifier != nil {
		s.notifier.Notify(writeCtx, record)
	}

	s.metrics.RecordSubmission(ctx, metrics.OutcomeAccepted, "")
	log.Info("submission accepted", zap.Int64("request_id", record.ID))

	return domain.Ack{ID: record.ID, CreatedAt: record.CreatedAt}, nil
}
