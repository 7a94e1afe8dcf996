package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/horn-node/internal/infrastructure/database"
	"github.com/nerrad567/horn-node/migrations"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	require.NoError(t, db.Migrate(ctx, migrations.FS))
	return NewSQLiteRepository(db.DB)
}

func TestCreate_GeneratesIDAndTimestamp(t *testing.T) {
	repo := newTestRepository(t)

	e := &Entry{NodeID: "horn-1", Topic: "Vehicle/Body/Horn/IsActive", Verdict: "actuate", On: true, Actuated: true, Published: true}
	require.NoError(t, repo.Create(context.Background(), e))

	assert.True(t, strings.HasPrefix(e.ID, "act-"), "id %q", e.ID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestList_RoundTripsFields(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &Entry{
		ID:        "act-fixed",
		NodeID:    "horn-1",
		Topic:     "Vehicle/Body/Horn/IsActive",
		Verdict:   "actuate",
		On:        true,
		Actuated:  true,
		Published: false,
		Error:     "publish timed out",
		CreatedAt: created,
	}))

	res, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)

	got := res.Entries[0]
	assert.Equal(t, "act-fixed", got.ID)
	assert.Equal(t, "horn-1", got.NodeID)
	assert.True(t, got.On)
	assert.True(t, got.Actuated)
	assert.False(t, got.Published)
	assert.Equal(t, "publish timed out", got.Error)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, defaultLimit, res.Limit)
}

func TestList_NewestFirstAndFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verdicts := []string{"actuate", "malformed", "actuate"}
	for i, v := range verdicts {
		require.NoError(t, repo.Create(ctx, &Entry{
			NodeID:    "horn-1",
			Topic:     "t",
			Verdict:   v,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all.Entries, 3)
	assert.True(t, all.Entries[0].CreatedAt.After(all.Entries[2].CreatedAt))

	malformed, err := repo.List(ctx, Filter{Verdict: "malformed"})
	require.NoError(t, err)
	assert.Equal(t, 1, malformed.Total)
	require.Len(t, malformed.Entries, 1)
	assert.Equal(t, "malformed", malformed.Entries[0].Verdict)
}

func TestList_Pagination(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &Entry{NodeID: "horn-1", Topic: "t", Verdict: "actuate"}))
	}

	page, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Entries, 1)

	clamped, err := repo.List(ctx, Filter{Limit: 1000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, clamped.Limit)
	assert.Equal(t, 0, clamped.Offset)
}

func TestList_EmptyIsNotNil(t *testing.T) {
	repo := newTestRepository(t)

	res, err := repo.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.NotNil(t, res.Entries)
	assert.Empty(t, res.Entries)
}
