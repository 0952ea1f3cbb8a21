package repository

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/smallbiznis/repairdesk/internal/clock"
	"github.com/smallbiznis/repairdesk/internal/request/domain"
	"gorm.io/gorm"
)

type repo struct {
	clock clock.Clock
}

func Provide(clk clock.Clock) domain.Repository {
	return &repo{clock: clk}
}

// Insert assigns CreatedAt from the store clock and lets the engine assign
// ID. The row is committed before Insert returns.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.Record) error {
	if record == nil {
		return fmt.Errorf("%w: nil record", domain.ErrWriteFailure)
	}

	row := *record
	row.ID = 0
	row.CreatedAt = r.clock.Now().UTC().Truncate(time.Second).Format(domain.CreatedAtLayout)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrWriteFailure, err)
	}

	*record = row
	return nil
}

// ListAll streams every record, newest first. The cursor is closed when the
// sequence ends, fails or the consumer stops early.
func (r *repo) ListAll(ctx context.Context, db *gorm.DB) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		rows, err := db.WithContext(ctx).Raw(
			`SELECT id, name, phone, brand, problem, preferred_time, created_at, source_ip, user_agent
			 FROM requests
			 ORDER BY created_at DESC, id DESC`,
		).Rows()
		if err != nil {
			yield(domain.Record{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var rec domain.Record
			if err := rows.Scan(
				&rec.ID,
				&rec.Name,
				&rec.Phone,
				&rec.Brand,
				&rec.Problem,
				&rec.PreferredTime,
				&rec.CreatedAt,
				&rec.SourceIP,
				&rec.UserAgent,
			); err != nil {
				yield(domain.Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(domain.Record{}, err)
		}
	}
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Record{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
