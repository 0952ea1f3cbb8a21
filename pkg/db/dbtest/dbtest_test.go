package dbtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsolatesDatabasesByName(t *testing.T) {
	first, err := New(t.Name() + "_first")
	require.NoError(t, err)
	second, err := New(t.Name() + "_second")
	require.NoError(t, err)

	require.NoError(t, first.Exec("CREATE TABLE scratch_rows (id INTEGER PRIMARY KEY)").Error)
	require.NoError(t, first.Exec("INSERT INTO scratch_rows (id) VALUES (1)").Error)

	var count int64
	require.NoError(t, first.Raw("SELECT COUNT(*) FROM scratch_rows").Scan(&count).Error)
	assert.Equal(t, int64(1), count)

	assert.Error(t, second.Exec("SELECT COUNT(*) FROM scratch_rows").Error)
}
