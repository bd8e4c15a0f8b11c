package db

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"etofusion/internal/types"
)

func testKey() types.CacheKey {
	return types.NewCacheKey(types.Point{Lat: -15.78, Lon: -47.93}, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), nil)
}

func testRecord() types.FusedDailyRecord {
	return types.FusedDailyRecord{
		Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Values: map[types.Variable]types.FusedValue{
			types.VarETo:           {Value: 5.7272727272727275, Uncertainty: 1.9522976563612, Sources: 2},
			types.VarPrecipitation: {Value: 1.0000000000000002e-07, Uncertainty: 3.3e-12, Sources: 2},
		},
		SourceCount: 2,
		Sources:     []string{"nasa_power", "open_meteo"},
		Quality:     types.QualityDegraded,
		ComputedAt:  time.Date(2024, 6, 1, 12, 0, 0, 987654321, time.UTC),
	}
}

func TestFusedRecordRepository_UpsertThenGet_RoundTripIsBitIdentical(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFusedRecordRepository(db)
	ctx := context.Background()

	var stored []byte
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		if len(args) != 6 {
			return false
		}
		b, ok := args[3].([]byte)
		if ok {
			stored = b
		}
		return ok
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	in := types.CacheEntry{Key: testKey(), Record: testRecord(), StoredAt: now, ExpiresAt: now.Add(24 * time.Hour)}
	require.NoError(t, repo.Upsert(ctx, in))

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(&mockRow{
		scanFn: func(dest ...any) error {
			if err := dest[0].(*types.FusedDailyRecord).Scan(stored); err != nil {
				return err
			}
			*dest[1].(*time.Time) = in.StoredAt
			*dest[2].(*time.Time) = in.ExpiresAt
			return nil
		},
	})

	out, ok, err := repo.Get(ctx, testKey())
	require.NoError(t, err)
	require.True(t, ok)

	for v, want := range in.Record.Values {
		got := out.Record.Values[v]
		assert.Equal(t, math.Float64bits(want.Value), math.Float64bits(got.Value), "value of %s", v)
		assert.Equal(t, math.Float64bits(want.Uncertainty), math.Float64bits(got.Uncertainty), "uncertainty of %s", v)
		assert.Equal(t, want.Sources, got.Sources)
	}
	assert.True(t, in.Record.ComputedAt.Equal(out.Record.ComputedAt))
	assert.Equal(t, in.Record.Sources, out.Record.Sources)
	assert.Equal(t, in.Record.Quality, out.Record.Quality)
	assert.Equal(t, testKey(), out.Key)
	db.AssertExpectations(t)
}

func TestFusedRecordRepository_Get_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFusedRecordRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, ok, err := repo.Get(ctx, testKey())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFusedRecordRepository_Get_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFusedRecordRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection reset")})

	_, ok, err := repo.Get(ctx, testKey())
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
}

func TestFusedRecordRepository_Upsert_KeyArguments(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFusedRecordRepository(db)
	ctx := context.Background()
	key := testKey()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return args[0] == "-15.7800,-47.9300" &&
			args[1].(time.Time).Equal(key.Date) &&
			args[2] == "eto+precipitation"
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Upsert(ctx, types.CacheEntry{Key: key, Record: testRecord()})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestFusedRecordRepository_Upsert_RejectsNonFinite(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFusedRecordRepository(db)

	rec := testRecord()
	rec.Values[types.VarETo] = types.FusedValue{Value: math.Inf(1)}

	err := repo.Upsert(context.Background(), types.CacheEntry{Key: testKey(), Record: rec})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeCachePersistence))
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestFusedRecordRepository_Upsert_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFusedRecordRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("disk full"))

	err := repo.Upsert(ctx, types.CacheEntry{Key: testKey(), Record: testRecord()})
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
}

func TestFusedRecordRepository_DeleteLocation(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFusedRecordRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{"-15.7800,-47.9300"}).
		Return(pgconn.NewCommandTag("DELETE 14"), nil)

	n, err := repo.DeleteLocation(ctx, "-15.7800,-47.9300")
	require.NoError(t, err)
	assert.Equal(t, 14, n)
	db.AssertExpectations(t)
}

func TestFusedRecordRepository_DeleteExpired(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFusedRecordRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{now}).
		Return(pgconn.NewCommandTag("DELETE 3"), nil)

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestFusedRecordRepository_Delete(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFusedRecordRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	require.NoError(t, repo.Delete(ctx, testKey()))
	db.AssertExpectations(t)
}
