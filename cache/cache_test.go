package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/charge-engine/cache"
	"github.com/warp/charge-engine/charges"
	"github.com/warp/charge-engine/charges/store"
)

// countingStore counts GetScheme calls that reach the store.
type countingStore struct {
	*store.Memory
	gets int
}

func (c *countingStore) GetScheme(ctx context.Context, id charges.SchemeID) (charges.SchemeRecord, error) {
	c.gets++
	return c.Memory.GetScheme(ctx, id)
}

// failingCache fails every operation.
type failingCache struct{}

var errCacheDown = errors.New("cache down")

func (failingCache) Get(context.Context, charges.SchemeID) (charges.SchemeRecord, bool, error) {
	return charges.SchemeRecord{}, false, errCacheDown
}
func (failingCache) Set(context.Context, charges.SchemeRecord) error { return errCacheDown }
func (failingCache) Fill(context.Context, charges.SchemeRecord) (bool, error) {
	return false, errCacheDown
}
func (failingCache) Delete(context.Context, charges.SchemeID) error { return errCacheDown }

// interleavedStore runs a hook right after a store read returns, standing in
// for a write from another request that lands between the read and the
// cache fill.
type interleavedStore struct {
	*store.Memory
	afterGet  func()
	afterList func()
}

func (s *interleavedStore) GetScheme(ctx context.Context, id charges.SchemeID) (charges.SchemeRecord, error) {
	rec, err := s.Memory.GetScheme(ctx, id)
	if s.afterGet != nil {
		hook := s.afterGet
		s.afterGet = nil
		hook()
	}
	return rec, err
}

func (s *interleavedStore) ListSchemes(ctx context.Context, filter charges.SchemeFilter) ([]charges.SchemeRecord, error) {
	recs, err := s.Memory.ListSchemes(ctx, filter)
	if s.afterList != nil {
		s.afterList()
	}
	return recs, err
}

func svcScheme() charges.SchemeRecord {
	return charges.SchemeRecord{ID: "svc", OrganizationID: "coop-1", BranchID: "main", Name: "Service fee",
		Scheme: charges.Scheme{ChargesPercentage1: decimal.NewFromInt(4)}}
}

func TestCachedSchemes_ReadThrough(t *testing.T) {
	backing := &countingStore{Memory: store.NewMemory()}
	cached := cache.NewCachedSchemes(backing, cache.NewMemory(time.Minute))
	ctx := context.Background()

	_, err := backing.Memory.SaveScheme(ctx, svcScheme())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec, err := cached.GetScheme(ctx, "svc")
		require.NoError(t, err)
		assert.Equal(t, "Service fee", rec.Name)
	}
	assert.Equal(t, 1, backing.gets, "only the first read should reach the store")
}

func TestCachedSchemes_SaveRefreshesAndDeleteEvicts(t *testing.T) {
	backing := &countingStore{Memory: store.NewMemory()}
	cached := cache.NewCachedSchemes(backing, cache.NewMemory(0))
	ctx := context.Background()

	_, err := cached.SaveScheme(ctx, svcScheme())
	require.NoError(t, err)

	update := svcScheme()
	update.Scheme.ChargesPercentage1 = decimal.NewFromInt(5)
	_, err = cached.SaveScheme(ctx, update)
	require.NoError(t, err)

	rec, err := cached.GetScheme(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.True(t, decimal.NewFromInt(5).Equal(rec.Scheme.ChargesPercentage1))
	assert.Equal(t, 0, backing.gets)

	require.NoError(t, cached.DeleteScheme(ctx, "svc"))
	_, err = cached.GetScheme(ctx, "svc")
	assert.ErrorIs(t, err, charges.ErrSchemeNotFound)
}

func TestCachedSchemes_CacheFailureFallsBackToStore(t *testing.T) {
	backing := &countingStore{Memory: store.NewMemory()}
	cached := cache.NewCachedSchemes(backing, failingCache{})
	ctx := context.Background()

	_, err := cached.SaveScheme(ctx, svcScheme())
	require.NoError(t, err)

	rec, err := cached.GetScheme(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, charges.SchemeID("svc"), rec.ID)
	assert.Equal(t, 1, backing.gets)
}

func TestCachedSchemes_ReadDoesNotOverwriteConcurrentSave(t *testing.T) {
	backing := &interleavedStore{Memory: store.NewMemory()}
	cached := cache.NewCachedSchemes(backing, cache.NewMemory(0))
	ctx := context.Background()

	_, err := backing.Memory.SaveScheme(ctx, svcScheme())
	require.NoError(t, err)

	// GIVEN: version 2 is saved after the read fetched version 1
	backing.afterGet = func() {
		update := svcScheme()
		update.Scheme.ChargesPercentage1 = decimal.NewFromInt(5)
		_, err := cached.SaveScheme(ctx, update)
		require.NoError(t, err)
	}

	// WHEN
	first, err := cached.GetScheme(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	// THEN: the stale read did not replace the newer entry
	rec, err := cached.GetScheme(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.True(t, decimal.NewFromInt(5).Equal(rec.Scheme.ChargesPercentage1))
}

func TestCachedSchemes_ReadDoesNotRestoreConcurrentDelete(t *testing.T) {
	backing := &interleavedStore{Memory: store.NewMemory()}
	cached := cache.NewCachedSchemes(backing, cache.NewMemory(time.Minute))
	ctx := context.Background()

	_, err := backing.Memory.SaveScheme(ctx, svcScheme())
	require.NoError(t, err)
	backing.afterGet = func() { require.NoError(t, cached.DeleteScheme(ctx, "svc")) }

	_, err = cached.GetScheme(ctx, "svc")
	require.NoError(t, err)

	_, err = cached.GetScheme(ctx, "svc")
	assert.ErrorIs(t, err, charges.ErrSchemeNotFound)
}

func TestMemory_FillAndTombstones(t *testing.T) {
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	mem := cache.NewMemory(time.Minute)
	mem.Now = func() time.Time { return now }
	ctx := context.Background()

	v1 := svcScheme()
	v1.Version = 1
	v2 := svcScheme()
	v2.Version = 2

	tests := []struct {
		name     string
		step     func() (bool, error)
		wantOK   bool
		wantHit  bool
		wantVers int
	}{
		{"fill empty key", func() (bool, error) { return mem.Fill(ctx, v1) }, true, true, 1},
		{"fill keeps existing entry", func() (bool, error) { return mem.Fill(ctx, v2) }, false, true, 1},
		{"set replaces entry", func() (bool, error) { return true, mem.Set(ctx, v2) }, true, true, 2},
		{"delete leaves tombstone", func() (bool, error) { return true, mem.Delete(ctx, "svc") }, true, false, 0},
		{"fill blocked by tombstone", func() (bool, error) { return mem.Fill(ctx, v1) }, false, false, 0},
		{"tombstone expires", func() (bool, error) { now = now.Add(time.Minute); return mem.Fill(ctx, v1) }, true, true, 1},
		{"set replaces tombstone", func() (bool, error) {
			if err := mem.Delete(ctx, "svc"); err != nil {
				return false, err
			}
			return true, mem.Set(ctx, v2)
		}, true, true, 2},
	}

	// Steps share one cache and run in order.
	for _, tt := range tests {
		ok, err := tt.step()
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.wantOK, ok, tt.name)

		rec, hit, err := mem.Get(ctx, "svc")
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.wantHit, hit, tt.name)
		assert.Equal(t, tt.wantVers, rec.Version, tt.name)
	}
}

func TestMemory_ExpiresEntries(t *testing.T) {
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	mem := cache.NewMemory(time.Minute)
	mem.Now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, svcScheme()))
	_, ok, err := mem.Get(ctx, "svc")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, err = mem.Get(ctx, "svc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_KeyAndCodec(t *testing.T) {
	r := cache.NewRedis(nil, "coop", time.Minute)
	assert.Equal(t, "coop:charge_scheme:svc", r.Key("svc"))
	assert.Equal(t, "charge_scheme:svc", cache.NewRedis(nil, "", 0).Key("svc"))

	rec := svcScheme()
	rec.Version = 7
	rec.Scheme.MaxAmount = charges.DecPtr("250.50")
	rec.UpdatedAt = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	val, err := r.Encode(rec)
	require.NoError(t, err)
	back, err := r.Decode(val)
	require.NoError(t, err)

	assert.Equal(t, rec.ID, back.ID)
	assert.Equal(t, 7, back.Version)
	assert.True(t, rec.UpdatedAt.Equal(back.UpdatedAt))
	assert.True(t, decimal.RequireFromString("250.5").Equal(*back.Scheme.MaxAmount))

	_, err = r.Decode("{broken")
	assert.Error(t, err)

	_, err = r.Decode(`{"deleted":true}`)
	assert.ErrorIs(t, err, charges.ErrSchemeNotFound)
}

func TestWarmer_CopiesAllSchemes(t *testing.T) {
	backing := store.NewMemory()
	ctx := context.Background()
	for _, id := range []charges.SchemeID{"svc", "ins"} {
		rec := svcScheme()
		rec.ID = id
		_, err := backing.SaveScheme(ctx, rec)
		require.NoError(t, err)
	}

	mem := cache.NewMemory(0)
	warmer := cache.NewWarmer(backing, mem, time.Hour)

	assert.Equal(t, 2, warmer.Warm(ctx))
	_, ok, err := mem.Get(ctx, "ins")
	require.NoError(t, err)
	assert.True(t, ok)

	// Entries already present are left alone.
	assert.Equal(t, 0, warmer.Warm(ctx))
}

func TestWarmer_DoesNotRestoreDeletedScheme(t *testing.T) {
	backing := &interleavedStore{Memory: store.NewMemory()}
	mem := cache.NewMemory(time.Minute)
	cached := cache.NewCachedSchemes(backing, mem)
	ctx := context.Background()

	// GIVEN: a cold cache, and the scheme is deleted after the warmer listed it
	_, err := backing.Memory.SaveScheme(ctx, svcScheme())
	require.NoError(t, err)
	backing.afterList = func() { require.NoError(t, cached.DeleteScheme(ctx, "svc")) }
	warmer := cache.NewWarmer(backing, mem, time.Hour)

	// WHEN
	assert.Equal(t, 0, warmer.Warm(ctx))

	// THEN: reads still see the delete
	_, err = cached.GetScheme(ctx, "svc")
	assert.ErrorIs(t, err, charges.ErrSchemeNotFound)
}

func TestWarmer_DoesNotOverwriteNewerSave(t *testing.T) {
	backing := &interleavedStore{Memory: store.NewMemory()}
	mem := cache.NewMemory(0)
	cached := cache.NewCachedSchemes(backing, mem)
	ctx := context.Background()

	_, err := backing.Memory.SaveScheme(ctx, svcScheme())
	require.NoError(t, err)
	backing.afterList = func() {
		update := svcScheme()
		update.Name = "Service fee v2"
		_, err := cached.SaveScheme(ctx, update)
		require.NoError(t, err)
	}

	cache.NewWarmer(backing, mem, time.Hour).Warm(ctx)

	rec, err := cached.GetScheme(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, "Service fee v2", rec.Name)
}

func TestWarmer_StartStop(t *testing.T) {
	backing := store.NewMemory()
	_, err := backing.SaveScheme(context.Background(), svcScheme())
	require.NoError(t, err)

	mem := cache.NewMemory(0)
	warmer := cache.NewWarmer(backing, mem, time.Hour)
	warmer.Start()
	warmer.Stop()

	// The first pass runs before the ticker fires.
	_, ok, err := mem.Get(context.Background(), "svc")
	require.NoError(t, err)
	assert.True(t, ok)

	disabled := cache.NewWarmer(backing, cache.NewMemory(0), 0)
	disabled.Start()
	disabled.Stop()
}
