package domain

import "context"

type SubmitRequest struct {
	Fields    map[string]string
	SourceIP  string
	UserAgent string
}

type Ack struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"created_at"`
}

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (Ack, error)
}

// Notifier forwards a persisted record to staff. Implementations absorb
// every delivery failure.
type Notifier interface {
	Notify(ctx context.Context, record Record)
}
