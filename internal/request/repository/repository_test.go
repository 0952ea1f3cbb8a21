package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/repairdesk/internal/clock"
	"github.com/smallbiznis/repairdesk/internal/migration"
	"github.com/smallbiznis/repairdesk/internal/request/domain"
	"github.com/smallbiznis/repairdesk/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := dbtest.New(t.Name())
	require.NoError(t, err)
	require.NoError(t, migration.Apply(conn, "sqlite3"))
	return conn
}

func collect(t *testing.T, seq func(func(domain.Record, error) bool)) []domain.Record {
	t.Helper()
	var out []domain.Record
	for rec, err := range seq {
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func newRecord(name string) domain.Record {
	return domain.NewRecord(domain.ValidatedSubmission{Name: name, Phone: "+79990000000"}, "203.0.113.7", "test-agent")
}

func TestInsertAssignsIDAndCreatedAt(t *testing.T) {
	conn := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 5, 17, 9, 30, 15, 987654321, time.UTC))
	repo := Provide(clk)

	first := newRecord("Ivan")
	require.NoError(t, repo.Insert(context.Background(), conn, &first))
	second := newRecord("Anna")
	require.NoError(t, repo.Insert(context.Background(), conn, &second))

	assert.Positive(t, first.ID)
	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, "2025-05-17T09:30:15Z", first.CreatedAt)

	count, err := repo.Count(context.Background(), conn)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestInsertIgnoresCallerSuppliedIdentity(t *testing.T) {
	conn := setupTestDB(t)
	repo := Provide(clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	rec := newRecord("Ivan")
	rec.ID = 999
	rec.CreatedAt = "1999-01-01T00:00:00Z"
	require.NoError(t, repo.Insert(context.Background(), conn, &rec))

	assert.NotEqual(t, int64(999), rec.ID)
	assert.Equal(t, "2025-01-01T00:00:00Z", rec.CreatedAt)
}

func TestInsertFailureWrapsWriteFailure(t *testing.T) {
	conn := setupTestDB(t)
	repo := Provide(clock.SystemClock{})
	require.NoError(t, conn.Exec("DROP TABLE requests").Error)

	rec := newRecord("Ivan")
	err := repo.Insert(context.Background(), conn, &rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWriteFailure)
}

func TestListAllOrdersByCreatedAtThenID(t *testing.T) {
	conn := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 5, 17, 9, 0, 0, 0, time.UTC))
	repo := Provide(clk)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"a", "b", "c"} {
		rec := newRecord(name)
		require.NoError(t, repo.Insert(ctx, conn, &rec))
		ids = append(ids, rec.ID)
	}
	clk.Advance(time.Minute)
	later := newRecord("d")
	require.NoError(t, repo.Insert(ctx, conn, &later))

	records := collect(t, repo.ListAll(ctx, conn))
	require.Len(t, records, 4)

	assert.Equal(t, later.ID, records[0].ID)
	assert.Equal(t, ids[2], records[1].ID)
	assert.Equal(t, ids[1], records[2].ID)
	assert.Equal(t, ids[0], records[3].ID)

	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		ordered := prev.CreatedAt > cur.CreatedAt || (prev.CreatedAt == cur.CreatedAt && prev.ID > cur.ID)
		assert.True(t, ordered, "records %d and %d out of order", prev.ID, cur.ID)
	}
}

func TestListAllIsRepeatable(t *testing.T) {
	conn := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 5, 17, 9, 0, 0, 0, time.UTC))
	repo := Provide(clk)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		rec := newRecord(name)
		require.NoError(t, repo.Insert(ctx, conn, &rec))
		clk.Advance(time.Second)
	}

	first := collect(t, repo.ListAll(ctx, conn))
	second := collect(t, repo.ListAll(ctx, conn))
	assert.Equal(t, first, second)
}

func TestListAllEarlyBreakReleasesConnection(t *testing.T) {
	conn := setupTestDB(t)
	repo := Provide(clock.SystemClock{})
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		rec := newRecord(name)
		require.NoError(t, repo.Insert(ctx, conn, &rec))
	}

	seen := 0
	for _, err := range repo.ListAll(ctx, conn) {
		require.NoError(t, err)
		seen++
		break
	}
	assert.Equal(t, 1, seen)

	// The pool holds a single connection, so this blocks if the cursor leaked.
	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rec := newRecord("after-break")
	require.NoError(t, repo.Insert(insertCtx, conn, &rec))
}

func TestListAllSurfacesQueryError(t *testing.T) {
	conn := setupTestDB(t)
	repo := Provide(clock.SystemClock{})
	require.NoError(t, conn.Exec("DROP TABLE requests").Error)

	var errs []error
	for _, err := range repo.ListAll(context.Background(), conn) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.Error(t, errs[0])
}

func TestConcurrentInsertsKeepIDsUnique(t *testing.T) {
	conn := setupTestDB(t)
	repo := Provide(clock.SystemClock{})
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	ids := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := newRecord("concurrent")
			if err := repo.Insert(ctx, conn, &rec); err != nil {
				t.Errorf("insert: %v", err)
				return
			}
			ids <- rec.ID
		}()
	}
	wg.Wait()
	close(ids)

	unique := map[int64]struct{}{}
	for id := range ids {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, workers)

	count, err := repo.Count(ctx, conn)
	require.NoError(t, err)
	assert.EqualValues(t, workers, count)
}
