package service_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/repairdesk/internal/audit/domain"
	auditrepo "github.com/smallbiznis/repairdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/repairdesk/internal/audit/service"
	"github.com/smallbiznis/repairdesk/internal/clock"
	"github.com/smallbiznis/repairdesk/internal/config"
	"github.com/smallbiznis/repairdesk/internal/export/domain"
	"github.com/smallbiznis/repairdesk/internal/export/service"
	"github.com/smallbiznis/repairdesk/internal/migration"
	requestdomain "github.com/smallbiznis/repairdesk/internal/request/domain"
	"github.com/smallbiznis/repairdesk/internal/request/repository"
	"github.com/smallbiznis/repairdesk/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	clock *clock.FakeClock
	repo  requestdomain.Repository
	audit auditdomain.Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	conn, err := dbtest.New(t.Name())
	require.NoError(t, err)
	require.NoError(t, migration.Apply(conn, "sqlite3"))

	clk := clock.NewFakeClock(time.Date(2025, 5, 17, 9, 30, 0, 0, time.UTC))
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	return fixture{
		db:    conn,
		clock: clk,
		repo:  repository.Provide(clk),
		audit: auditservice.NewService(auditservice.Params{
			DB:    conn,
			Log:   zap.NewNop(),
			GenID: node,
			Clock: clk,
			Repo:  auditrepo.Provide(),
		}),
	}
}

func (f fixture) service(secret string) domain.Service {
	return service.New(service.Params{
		DB:       f.db,
		Log:      zap.NewNop(),
		Config:   config.Config{AdminToken: secret},
		Clock:    f.clock,
		Repo:     f.repo,
		AuditSvc: f.audit,
	})
}

func (f fixture) seed(t *testing.T, names ...string) []requestdomain.Record {
	t.Helper()
	var out []requestdomain.Record
	for _, name := range names {
		rec := requestdomain.NewRecord(requestdomain.ValidatedSubmission{
			Name:    name,
			Phone:   "+7 999, 000",
			Problem: "line one\nline \"two\"",
		}, "198.51.100.1", "agent")
		require.NoError(t, f.repo.Insert(context.Background(), f.db, &rec))
		out = append(out, rec)
		f.clock.Advance(time.Second)
	}
	return out
}

func (f fixture) auditActions(t *testing.T, action string) int {
	t.Helper()
	resp, err := f.audit.List(context.Background(), auditdomain.ListAuditLogRequest{Action: action})
	require.NoError(t, err)
	return len(resp.AuditLogs)
}

func readCSV(t *testing.T, exp *domain.Export) [][]string {
	t.Helper()
	var buf bytes.Buffer
	n, err := exp.WriteTo(&buf)
	require.NoError(t, err)
	assert.EqualValues(t, buf.Len(), n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExportForbiddenOnTokenMismatch(t *testing.T) {
	f := setup(t)
	svc := f.service("s3cret")

	for _, token := range []string{"", "wrong", "s3cret "} {
		exp, err := svc.Export(context.Background(), token)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.Nil(t, exp)
	}
	assert.Equal(t, 3, f.auditActions(t, auditdomain.ActionExportForbidden))
}

func TestExportMatchingTokenStreamsAllRecords(t *testing.T) {
	f := setup(t)
	seeded := f.seed(t, "Anna", "Boris", "Vera")
	svc := f.service("s3cret")

	exp, err := svc.Export(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "requests_20250517_093003.csv", exp.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", exp.ContentType)
	assert.NotZero(t, exp.ID)

	rows := readCSV(t, exp)
	require.Len(t, rows, 4)
	assert.Equal(t, domain.Header, rows[0])

	// Newest first.
	for i, rec := range []requestdomain.Record{seeded[2], seeded[1], seeded[0]} {
		assert.Equal(t, []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Name,
			"+7 999, 000",
			"",
			"line one\nline \"two\"",
			"",
			rec.CreatedAt,
			"198.51.100.1",
			"agent",
		}, rows[i+1])
	}
	assert.Equal(t, 1, f.auditActions(t, auditdomain.ActionExportDownloaded))
}

func TestExportWithoutSecretIsOpen(t *testing.T) {
	f := setup(t)
	f.seed(t, "Anna")

	exp, err := f.service("").Export(context.Background(), "")
	require.NoError(t, err)

	rows := readCSV(t, exp)
	assert.Len(t, rows, 2)
}

func TestExportEmptyStoreWritesHeaderOnly(t *testing.T) {
	f := setup(t)

	exp, err := f.service("").Export(context.Background(), "anything")
	require.NoError(t, err)

	rows := readCSV(t, exp)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.Header, rows[0])
}

func TestExportSurfacesStoreError(t *testing.T) {
	f := setup(t)
	exp, err := f.service("").Export(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, f.db.Exec("DROP TABLE requests").Error)

	var buf bytes.Buffer
	_, err = exp.WriteTo(&buf)
	assert.Error(t, err)
}
