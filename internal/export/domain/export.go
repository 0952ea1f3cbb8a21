package domain

import (
	"context"
	"errors"
	"io"

	"github.com/oklog/ulid/v2"
)

const (
	ContentType    = "text/csv; charset=utf-8"
	FilenameLayout = "requests_20060102_150405.csv"
)

// Header is the fixed column order of the CSV export.
var Header = []string{
	"id", "name", "phone", "brand", "problem", "preferred_time", "created_at", "source_ip", "user_agent",
}

var (
	ErrForbidden = errors.New("forbidden")
)

// Export is a prepared CSV download. Rows are read from the store only when
// WriteTo runs, in a single pass.
type Export struct {
	ID          ulid.ULID
	Filename    string
	ContentType string

	stream func(w io.Writer) (int64, error)
}

func NewExport(id ulid.ULID, filename string, stream func(w io.Writer) (int64, error)) *Export {
	return &Export{
		ID:          id,
		Filename:    filename,
		ContentType: ContentType,
		stream:      stream,
	}
}

// WriteTo streams the header and every record to w.
func (e *Export) WriteTo(w io.Writer) (int64, error) {
	if e == nil || e.stream == nil {
		return 0, errors.New("export not prepared")
	}
	return e.stream(w)
}

type Service interface {
	Export(ctx context.Context, token string) (*Export, error)
}
