package impl

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopradar/config"
	"shopradar/internal/domain/entity"
	domainerrors "shopradar/internal/domain/errors"
	"shopradar/internal/geo"
	"shopradar/internal/usecase"
)

// scriptedShopSource records fetch traffic and serves a scripted set. A
// non-nil gate holds every fetch open until the test releases it.
type scriptedShopSource struct {
	mu          sync.Mutex
	shops       []entity.Shop
	err         error
	allCalls    int
	nearbyCalls int
	lastCenter  entity.Coordinate
	lastRadius  float64
	lastLimit   int
	gate        chan struct{}
	started     chan struct{}
}

func (s *scriptedShopSource) FetchAllWithLocation(context.Context) ([]entity.Shop, error) {
	s.mu.Lock()
	s.allCalls++
	gate := s.gate
	started := s.started
	s.mu.Unlock()

	return s.finish(gate, started)
}

func (s *scriptedShopSource) FetchNearby(_ context.Context, center entity.Coordinate, radiusMeters float64, limit int) ([]entity.Shop, error) {
	s.mu.Lock()
	s.nearbyCalls++
	s.lastCenter = center
	s.lastRadius = radiusMeters
	s.lastLimit = limit
	gate := s.gate
	started := s.started
	s.mu.Unlock()

	return s.finish(gate, started)
}

func (s *scriptedShopSource) finish(gate, started chan struct{}) ([]entity.Shop, error) {
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	return append([]entity.Shop(nil), s.shops...), nil
}

func (s *scriptedShopSource) counts() (all, nearby int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.allCalls, s.nearbyCalls
}

func newTestIndexService(source *scriptedShopSource) usecase.ShopIndexUsecase {
	return NewIndexService(
		&config.ShopAPIConfig{NearbyRadiusMeters: 50000, NearbyLimit: 120},
		discardLogger(),
		source,
	)
}

func TestReplaceAndGet(t *testing.T) {
	idx := newTestIndexService(&scriptedShopSource{})
	idx.Replace([]entity.Shop{testShopA, testShopB})
	assert.Equal(t, 2, idx.Len())

	shop, ok := idx.Get("shop-a")
	require.True(t, ok)
	assert.Equal(t, "Alpha Coffee", shop.Name)

	// The lookup hands out a copy; mutating it must not touch the index.
	shop.Name = "Mangled"
	again, ok := idx.Get("shop-a")
	require.True(t, ok)
	assert.Equal(t, "Alpha Coffee", again.Name)

	_, ok = idx.Get("no-such-shop")
	assert.False(t, ok)

	// Replace swaps wholesale; the old set does not linger.
	idx.Replace([]entity.Shop{testShopB})
	assert.Equal(t, 1, idx.Len())
	_, ok = idx.Get("shop-a")
	assert.False(t, ok)
}

func TestSetPositionRecomputesDistances(t *testing.T) {
	idx := newTestIndexService(&scriptedShopSource{})
	noLocation := entity.Shop{ID: "shop-n", Name: "Nowhere Noodles"}
	idx.Replace([]entity.Shop{testShopA, noLocation})

	idx.SetPosition(entity.UserPosition{Coord: testOrigin, AccuracyMeters: 10, CapturedAt: time.Now()})

	shop, ok := idx.Get("shop-a")
	require.True(t, ok)
	require.NotNil(t, shop.DistanceMeters)
	assert.InDelta(t, geo.Distance(testOrigin, *testShopA.Location), *shop.DistanceMeters, 0.01)

	bare, ok := idx.Get("shop-n")
	require.True(t, ok)
	assert.Nil(t, bare.DistanceMeters, "a shop without a location never carries a distance")

	// A later wholesale replace inherits the known position.
	idx.Replace([]entity.Shop{testShopB})
	shop, ok = idx.Get("shop-b")
	require.True(t, ok)
	require.NotNil(t, shop.DistanceMeters)
	assert.InDelta(t, geo.Distance(testOrigin, *testShopB.Location), *shop.DistanceMeters, 0.01)
}

func TestShopsFilterAndOrder(t *testing.T) {
	idx := newTestIndexService(&scriptedShopSource{})
	featuredFar := entity.Shop{
		ID: "shop-f", Name: "Cafe Centro", Locality: "Downtown", Featured: true,
		Location: &entity.Coordinate{Lat: 25.10, Lng: 121.60},
	}
	noLocation := entity.Shop{ID: "shop-n", Name: "Nowhere Noodles", Locality: "Downtown"}
	idx.Replace([]entity.Shop{noLocation, featuredFar, testShopA, testShopB})
	idx.SetPosition(entity.UserPosition{Coord: testOrigin, AccuracyMeters: 10, CapturedAt: time.Now()})

	view := idx.Shops("")
	require.Len(t, view, 4)
	assert.Equal(t, "shop-f", view[0].ID, "featured shops lead the view")
	assert.Equal(t, "shop-a", view[1].ID)
	assert.Equal(t, "shop-b", view[2].ID)
	assert.Equal(t, "shop-n", view[3].ID, "unknown distances sort last")

	byLocality := idx.Shops("downtown")
	require.Len(t, byLocality, 2)
	byName := idx.Shops("CENTRO")
	require.Len(t, byName, 1)
	assert.Equal(t, "shop-f", byName[0].ID)
	assert.Empty(t, idx.Shops("tacos"))

	// Views are copies; callers cannot corrupt the index through them.
	view[1].Name = "Mangled"
	fresh, ok := idx.Get("shop-a")
	require.True(t, ok)
	assert.Equal(t, "Alpha Coffee", fresh.Name)
}

func TestReloadWithoutPositionFetchesAll(t *testing.T) {
	source := &scriptedShopSource{shops: []entity.Shop{testShopA, testShopB}}
	idx := newTestIndexService(source)

	view, err := idx.Reload(context.Background())
	require.NoError(t, err)
	assert.Len(t, view, 2)
	assert.Equal(t, 2, idx.Len())

	all, nearby := source.counts()
	assert.Equal(t, 1, all)
	assert.Zero(t, nearby)
}

func TestReloadWithPositionFetchesNearby(t *testing.T) {
	source := &scriptedShopSource{shops: []entity.Shop{testShopA}}
	idx := newTestIndexService(source)
	idx.SetPosition(entity.UserPosition{Coord: testOrigin, AccuracyMeters: 10, CapturedAt: time.Now()})

	_, err := idx.Reload(context.Background())
	require.NoError(t, err)

	all, nearby := source.counts()
	assert.Zero(t, all)
	assert.Equal(t, 1, nearby)
	assert.Equal(t, testOrigin, source.lastCenter)
	assert.Equal(t, 50000.0, source.lastRadius)
	assert.Equal(t, 120, source.lastLimit)
}

func TestReloadSourceFailureKeepsIndex(t *testing.T) {
	source := &scriptedShopSource{shops: []entity.Shop{testShopA}}
	idx := newTestIndexService(source)

	_, err := idx.Reload(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())

	source.mu.Lock()
	source.err = assert.AnError
	source.mu.Unlock()

	_, err = idx.Reload(context.Background())
	require.ErrorIs(t, err, domainerrors.ErrShopSourceUnavailable)
	assert.Equal(t, 1, idx.Len(), "a failed reload leaves the previous set in place")
}

func TestConcurrentReloadsCollapse(t *testing.T) {
	source := &scriptedShopSource{
		shops:   []entity.Shop{testShopA, testShopB},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	idx := newTestIndexService(source)

	type result struct {
		view []entity.Shop
		err  error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			view, err := idx.Reload(context.Background())
			results <- result{view: view, err: err}
		}()
	}

	// Wait for the first fetch to start, give the second caller time to
	// attach to the flight, then let the fetch finish.
	<-source.started
	time.Sleep(50 * time.Millisecond)
	close(source.gate)

	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			require.NoError(t, r.err)
			assert.Len(t, r.view, 2)
		case <-time.After(time.Second):
			t.Fatal("reload did not finish")
		}
	}

	all, _ := source.counts()
	assert.Equal(t, 1, all, "overlapping reloads share one fetch")
}
