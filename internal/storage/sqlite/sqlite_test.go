package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civinigrani/internal/domain"
	"civinigrani/internal/storage"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "civinigrani.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func month(m time.Month) time.Time {
	return time.Date(2024, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestPRGIStore_RoundTripAndOrder(t *testing.T) {
	store := NewPRGIStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []domain.PRGIRecord{
		{District: "banda", Month: month(time.February), Allocation: 200, Distribution: 150, PRGI: 0.25},
		{District: "agra", Month: month(time.February), Allocation: 100, Distribution: 90, PRGI: 0.1},
		{District: "agra", Month: month(time.January), Allocation: 100, Distribution: 80, PRGI: 0.2},
	}))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "agra|2024-01", all[0].Key())
	assert.Equal(t, "agra|2024-02", all[1].Key())
	assert.Equal(t, "banda|2024-02", all[2].Key())
	assert.Equal(t, 150.0, all[2].Distribution)

	agra, err := store.GetByDistrict(ctx, "agra")
	require.NoError(t, err)
	require.Len(t, agra, 2)
	assert.True(t, agra[1].Month.Equal(month(time.February)))
}

func TestPRGIStore_DuplicateRollsBack(t *testing.T) {
	store := NewPRGIStore(openTestDB(t))
	ctx := context.Background()

	r := domain.PRGIRecord{District: "agra", Month: month(time.January), Allocation: 1, PRGI: 1}
	require.NoError(t, store.InsertBulk(ctx, []domain.PRGIRecord{r}))

	err := store.InsertBulk(ctx, []domain.PRGIRecord{
		{District: "kanpur", Month: month(time.January), Allocation: 1, PRGI: 1},
		r,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPRGIStore_LargeBatchIsChunked(t *testing.T) {
	store := NewPRGIStore(openTestDB(t))
	ctx := context.Background()

	var records []domain.PRGIRecord
	for d := 0; d < 75; d++ {
		for m := 1; m <= 12; m++ {
			records = append(records, domain.PRGIRecord{
				District:   fmt.Sprintf("district-%02d", d),
				Month:      month(time.Month(m)),
				Allocation: 100,
				PRGI:       1,
			})
		}
	}
	require.NoError(t, store.InsertBulk(ctx, records))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(records))
}

func TestGrievanceStore_RoundTrip(t *testing.T) {
	store := NewGrievanceStore(openTestDB(t))
	ctx := context.Background()

	signals := []domain.GrievanceSignal{
		{Month: month(time.March), Signals: 30},
		{Month: month(time.January), District: "agra", Source: "cpgrams", Signals: 5},
	}
	require.NoError(t, store.InsertBulk(ctx, signals))

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cpgrams", got[0].Source)
	assert.Equal(t, int64(30), got[1].Signals)
	assert.Empty(t, got[1].District)

	assert.ErrorIs(t, store.InsertBulk(ctx, signals[:1]), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.InsertBulk(ctx, []domain.GrievanceSignal{{Signals: 1}}), storage.ErrInvalidInput)
}

func TestPRGIStore_ReplaceAll(t *testing.T) {
	store := NewPRGIStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []domain.PRGIRecord{
		{District: "agra", Month: month(time.January), Allocation: 1000, Distribution: 700, PRGI: 0.3},
		{District: "banda", Month: month(time.January), Allocation: 500, Distribution: 400, PRGI: 0.2},
	}))

	corrected := domain.PRGIRecord{District: "agra", Month: month(time.January), Allocation: 1000, Distribution: 900, PRGI: 0.1}
	require.NoError(t, store.ReplaceAll(ctx, []domain.PRGIRecord{corrected}))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.InDelta(t, 0.1, all[0].PRGI, 1e-12)

	assert.ErrorIs(t, store.ReplaceAll(ctx, []domain.PRGIRecord{corrected, corrected}), storage.ErrDuplicateKey)
	all, err = store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "failed replace must roll back the delete")
}

func TestGrievanceStore_ReplaceAll(t *testing.T) {
	store := NewGrievanceStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []domain.GrievanceSignal{
		{Month: month(time.January), District: "agra", Signals: 40},
		{Month: month(time.February), District: "agra", Signals: 12},
	}))
	require.NoError(t, store.ReplaceAll(ctx, []domain.GrievanceSignal{
		{Month: month(time.January), District: "agra", Signals: 10},
	}))

	got, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].Signals)
}
