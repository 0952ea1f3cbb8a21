package service

import (
	"context"
	"crypto/subtle"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/repairdesk/internal/audit/domain"
	"github.com/smallbiznis/repairdesk/internal/clock"
	"github.com/smallbiznis/repairdesk/internal/config"
	"github.com/smallbiznis/repairdesk/internal/export/domain"
	"github.com/smallbiznis/repairdesk/internal/observability/logger"
	"github.com/smallbiznis/repairdesk/internal/observability/metrics"
	requestdomain "github.com/smallbiznis/repairdesk/internal/request/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Config   config.Config
	Clock    clock.Clock
	Repo     requestdomain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	secret   string
	clock    clock.Clock
	repo     requestdomain.Repository
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("export.service"),
		secret:   p.Config.AdminToken,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

// Export checks token against the configured secret and prepares the CSV.
// With no secret configured the export is open.
func (s *Service) Export(ctx context.Context, token string) (*domain.Export, error) {
	if !s.authorized(token) {
		s.metrics.RecordExport(ctx, metrics.OutcomeForbidden, 0)
		s.audit(ctx, auditdomain.ActionExportForbidden, nil, nil)
		logger.WithContext(ctx, s.log).Warn("export token rejected")
		return nil, domain.ErrForbidden
	}

	now := s.clock.Now().UTC()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	filename := now.Format(domain.FilenameLayout)

	return domain.NewExport(id, filename, func(w io.Writer) (int64, error) {
		return s.stream(ctx, id, w)
	}), nil
}

func (s *Service) authorized(token string) bool {
	if s.secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) == 1
}

func (s *Service) stream(ctx context.Context, id ulid.ULID, w io.Writer) (int64, error) {
	log := logger.WithContext(ctx, s.log).With(zap.String("export_id", id.String()))
	cw := &countingWriter{w: w}
	out := csv.NewWriter(cw)

	if err := out.Write(domain.Header); err != nil {
		return cw.n, err
	}

	var rows int64
	for rec, err := range s.repo.ListAll(ctx, s.db) {
		if err != nil {
			out.Flush()
			s.metrics.RecordExport(ctx, metrics.OutcomeFailed, rows)
			log.Error("export aborted", zap.Int64("rows", rows), zap.Error(err))
			return cw.n, err
		}
		if err := out.Write(recordRow(rec)); err != nil {
			return cw.n, err
		}
		rows++
	}

	out.Flush()
	if err := out.Error(); err != nil {
		s.metrics.RecordExport(ctx, metrics.OutcomeFailed, rows)
		log.Warn("export write failed", zap.Int64("rows", rows), zap.Error(err))
		return cw.n, err
	}

	s.metrics.RecordExport(ctx, metrics.OutcomeCompleted, rows)
	exportID := id.String()
	s.audit(ctx, auditdomain.ActionExportDownloaded, &exportID, map[string]any{"rows": rows})
	log.Info("export completed", zap.Int64("rows", rows), zap.Int64("bytes", cw.n))
	return cw.n, nil
}

func (s *Service) audit(ctx context.Context, action string, targetID *string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, action, auditdomain.TargetTypeExport, targetID, metadata); err != nil {
		s.log.Warn("audit export failed", zap.String("action", action), zap.Error(err))
	}
}

func recordRow(rec requestdomain.Record) []string {
	return []string{
		strconv.FormatInt(rec.ID, 10),
		rec.Name,
		rec.Phone,
		rec.Brand,
		rec.Problem,
		rec.PreferredTime,
		rec.CreatedAt,
		rec.SourceIP,
		rec.UserAgent,
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
