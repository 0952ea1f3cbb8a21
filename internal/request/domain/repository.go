package domain

import (
	"context"
	"iter"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *Record) error
	ListAll(ctx context.Context, db *gorm.DB) iter.Seq2[Record, error]
	Count(ctx context.Context, db *gorm.DB) (int64, error)
}
