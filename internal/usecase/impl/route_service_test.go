package impl

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopradar/config"
	"shopradar/internal/domain/entity"
	domainerrors "shopradar/internal/domain/errors"
	"shopradar/internal/geo"
	"shopradar/internal/timeutil"
	"shopradar/internal/usecase"
)

var (
	testOrigin = entity.Coordinate{Lat: 25.0330, Lng: 121.5654}
	testShopA  = entity.Shop{ID: "shop-a", Name: "Alpha Coffee", Location: &entity.Coordinate{Lat: 25.0425, Lng: 121.5649}}
	testShopB  = entity.Shop{ID: "shop-b", Name: "Beta Bakery", Location: &entity.Coordinate{Lat: 25.0478, Lng: 121.5318}}
)

// fakePositions is a settable positionSource.
type fakePositions struct {
	mu  sync.Mutex
	pos *entity.UserPosition
}

func (f *fakePositions) Current() (*entity.UserPosition, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos == nil {
		return nil, false
	}
	pos := *f.pos

	return &pos, true
}

func (f *fakePositions) set(coord entity.Coordinate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = &entity.UserPosition{Coord: coord, AccuracyMeters: 10, CapturedAt: time.Now()}
}

// scriptedRouteProvider answers every call with a synthetic route (or the
// scripted error) and signals each call on notify.
type scriptedRouteProvider struct {
	mu     sync.Mutex
	calls  int
	err    error
	notify chan struct{}
}

func newScriptedRouteProvider() *scriptedRouteProvider {
	return &scriptedRouteProvider{notify: make(chan struct{}, 16)}
}

func (p *scriptedRouteProvider) Route(_ context.Context, from, to entity.Coordinate) (*entity.Route, error) {
	p.mu.Lock()
	p.calls++
	err := p.err
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	if err != nil {
		return nil, err
	}

	return &entity.Route{
		From:           from,
		To:             to,
		Geometry:       orb.LineString{from.Point(), to.Point()},
		DistanceMeters: geo.Distance(from, to),
		Duration:       5 * time.Minute,
	}, nil
}

func (p *scriptedRouteProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls
}

func (p *scriptedRouteProvider) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

type shownRoute struct {
	targetID string
	fit      bool
}

type fakePresenter struct {
	mu     sync.Mutex
	shown  []shownRoute
	clears int
}

func (p *fakePresenter) ShowRoute(route *entity.Route, fit bool, _ orb.Bound) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = append(p.shown, shownRoute{targetID: route.TargetID, fit: fit})
}

func (p *fakePresenter) ClearRoute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
}

func (p *fakePresenter) showCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.shown)
}

func (p *fakePresenter) shownAt(i int) shownRoute {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.shown[i]
}

func (p *fakePresenter) clearCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.clears
}

func newTestRouteService(clock timeutil.Clock) (usecase.RouteUsecase, *scriptedRouteProvider, *fakePresenter, *fakePositions) {
	cfg := &config.TrackingConfig{MinMoveMeters: 40, RefreshInterval: 45 * time.Second}
	provider := newScriptedRouteProvider()
	presenter := &fakePresenter{}
	positions := &fakePositions{}
	svc := NewRouteService(cfg, discardLogger(), provider, presenter, positions, clock)

	return svc, provider, presenter, positions
}

func TestRequestRouteWithoutPosition(t *testing.T) {
	svc, provider, _, _ := newTestRouteService(nil)

	route, err := svc.RequestRoute(context.Background(), &testShopA, usecase.RouteOptions{})

	require.ErrorIs(t, err, domainerrors.ErrNoPosition)
	assert.Nil(t, route)
	assert.Equal(t, 0, provider.count(), "a missing position must not reach the provider")
}

func TestRequestRouteUnroutableTarget(t *testing.T) {
	svc, provider, _, positions := newTestRouteService(nil)
	positions.set(testOrigin)

	_, err := svc.RequestRoute(context.Background(), nil, usecase.RouteOptions{})
	require.ErrorIs(t, err, domainerrors.ErrShopNotRoutable)

	noLocation := entity.Shop{ID: "shop-x", Name: "No Location"}
	_, err = svc.RequestRoute(context.Background(), &noLocation, usecase.RouteOptions{})
	require.ErrorIs(t, err, domainerrors.ErrShopNotRoutable)

	assert.Equal(t, 0, provider.count())
}

func TestRequestRouteDebounce(t *testing.T) {
	svc, provider, _, positions := newTestRouteService(nil)
	positions.set(testOrigin)

	first, err := svc.RequestRoute(context.Background(), &testShopA, usecase.RouteOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, provider.count())

	// Small drift with an unchanged target returns the held route.
	positions.set(moveNorth(testOrigin, 10))
	held, err := svc.RequestRoute(context.Background(), &testShopA, usecase.RouteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, provider.count())
	assert.Equal(t, first.Generation, held.Generation)
	assert.Equal(t, first.DistanceMeters, held.DistanceMeters)

	// Just under the threshold still suppresses.
	positions.set(moveNorth(testOrigin, 39))
	_, err = svc.RequestRoute(context.Background(), &testShopA, usecase.RouteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, provider.count())

	// Just over it recomputes.
	positions.set(moveNorth(testOrigin, 41))
	fresh, err := svc.RequestRoute(context.Background(), &testShopA, usecase.RouteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.count())
	assert.Greater(t, fresh.Generation, first.Generation)
}

func TestRequestRouteTargetChangeBypassesDebounce(t *testing.T) {
	svc, provider, _, positions := newTestRouteService(nil)
	positions.set(testOrigin)

	_, err := svc.RequestRoute(context.Background(), &testShopA, usecase.RouteOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, provider.count())

	// Same position, different target: the gate must not apply.
	route, err := svc.RequestRoute(context.Background(), &testShopB, usecase.RouteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.count())
	assert.Equal(t, testShopB.ID, route.TargetID)
}

func TestRequestRouteFailureKeepsPreviousRoute(t *testing.T) {
	svc, provider, _, positions := newTestRouteService(nil)
	positions.set(testOrigin)

	_, err := svc.RequestRoute(context.Background(), &testShopA, usecase.RouteOptions{})
	require.NoError(t, err)

	positions.set(moveNorth(testOrigin, 100))
	provider.setErr(domainerrors.ErrRouteTransport)
	route, err := svc.RequestRoute(context.Background(), &testShopA, usecase.RouteOptions{Silent: true})
	require.ErrorIs(t, err, domainerrors.ErrRouteTransport)
	assert.Nil(t, route)

	snap := svc.Snapshot()
	require.NotNil(t, snap.Route, "a failed refresh keeps the previous route")
	assert.Equal(t, testShopA.ID, snap.Route.TargetID)
	assert.NotEmpty(t, snap.LastError)

	// The anchors were not advanced by the failure, so the next attempt
	// from the same spot recomputes instead of debouncing.
	provider.setErr(nil)
	_, err = svc.RequestRoute(context.Background(), &testShopA, usecase.RouteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, provider.count())
	assert.Empty(t, svc.Snapshot().LastError)
}

// gatedCall is one in-flight gated provider call the test controls.
type gatedCall struct {
	ctx     context.Context
	from    entity.Coordinate
	release chan gatedResult
}

type gatedResult struct {
	route *entity.Route
	err   error
}

// gatedRouteProvider blocks every call until the test releases it, which
// lets tests interleave completions in any order.
type gatedRouteProvider struct {
	started chan *gatedCall
}

func newGatedRouteProvider() *gatedRouteProvider {
	return &gatedRouteProvider{started: make(chan *gatedCall, 8)}
}

func (p *gatedRouteProvider) Route(ctx context.Context, from, to entity.Coordinate) (*entity.Route, error) {
	call := &gatedCall{ctx: ctx, from: from, release: make(chan gatedResult, 1)}
	p.started <- call
	res := <-call.release

	if res.err != nil {
		return nil, res.err
	}
	route := *res.route
	route.From = from
	route.To = to

	return &route, nil
}

func (p *gatedRouteProvider) next(t *testing.T) *gatedCall {
	t.Helper()
	select {
	case call := <-p.started:
		return call
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a provider call")
		return nil
	}
}

type routeReply struct {
	route *entity.Route
	err   error
}

func TestRequestRouteNewerRequestWins(t *testing.T) {
	cfg := &config.TrackingConfig{MinMoveMeters: 40, RefreshInterval: 45 * time.Second}
	provider := newGatedRouteProvider()
	presenter := &fakePresenter{}
	positions := &fakePositions{}
	svc := NewRouteService(cfg, discardLogger(), provider, presenter, positions, nil)

	positions.set(testOrigin)
	replyA := make(chan routeReply, 1)
	go func() {
		route, err := svc.RequestRoute(context.Background(), &testShopA, usecase.RouteOptions{})
		replyA <- routeReply{route, err}
	}()
	callA := provider.next(t)

	// B supersedes A while A is still on the wire; A's context is
	// cancelled at dispatch time.
	positions.set(moveNorth(testOrigin, 100))
	replyB := make(chan routeReply, 1)
	go func() {
		route, err := svc.RequestRoute(context.Background(), &testShopA, usecase.RouteOptions{})
		replyB <- routeReply{route, err}
	}()
	callB := provider.next(t)
	require.Error(t, callA.ctx.Err(), "dispatching B must cancel A's in-flight context")

	callB.release <- gatedResult{route: &entity.Route{DistanceMeters: 2222, Duration: 2 * time.Minute}}
	gotB := <-replyB
	require.NoError(t, gotB.err)
	require.NotNil(t, gotB.route)
	assert.Equal(t, float64(2222), gotB.route.DistanceMeters)

	// A resolves after B: its response is discarded and the caller gets
	// the route B computed, without an error.
	callA.release <- gatedResult{route: &entity.Route{DistanceMeters: 1111, Duration: time.Minute}}
	gotA := <-replyA
	require.NoError(t, gotA.err)
	require.NotNil(t, gotA.route)
	assert.Equal(t, float64(2222), gotA.route.DistanceMeters, "the stale caller sees B's route, not its own")

	snap := svc.Snapshot()
	assert.Equal(t, uint64(1), snap.StaleDrops)
	require.NotNil(t, snap.Route)
	assert.Equal(t, float64(2222), snap.Route.DistanceMeters)

	// Only B's success was presented.
	assert.Equal(t, 1, presenter.showCount())
}

func TestStartTrackingRefreshesOnInterval(t *testing.T) {
	clk := timeutil.NewFake(time.Unix(1700000000, 0))
	svc, provider, presenter, positions := newTestRouteService(clk)
	positions.set(testOrigin)

	route, err := svc.StartTracking(context.Background(), &testShopA)
	require.NoError(t, err)
	require.NotNil(t, route)
	require.Equal(t, 1, provider.count())
	waitSignal(t, provider.notify)
	assert.True(t, presenter.shownAt(0).fit, "the initial computation fits the viewport")

	snap := svc.Snapshot()
	assert.True(t, snap.Tracking)
	assert.Equal(t, testShopA.ID, snap.TargetID)

	// One interval elapses: exactly one silent refresh, even though the
	// user has not moved.
	clk.BlockUntil(1)
	clk.Advance(45 * time.Second)
	waitSignal(t, provider.notify)
	assert.Equal(t, 2, provider.count())
	require.Eventually(t, func() bool { return presenter.showCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, presenter.shownAt(1).fit, "periodic refreshes keep the viewport")

	svc.StopTracking()
	assert.Equal(t, 1, presenter.clearCount())
	snap = svc.Snapshot()
	assert.False(t, snap.Tracking)
	assert.Nil(t, snap.Route)

	// Stopping twice does nothing, and the clock advancing after a stop
	// produces no further provider traffic.
	svc.StopTracking()
	assert.Equal(t, 1, presenter.clearCount())
	clk.Advance(45 * time.Second)
	assert.Equal(t, 2, provider.count())
}

func TestStartTrackingSameTargetIsNoOp(t *testing.T) {
	clk := timeutil.NewFake(time.Unix(1700000000, 0))
	svc, provider, _, positions := newTestRouteService(clk)
	positions.set(testOrigin)

	first, err := svc.StartTracking(context.Background(), &testShopA)
	require.NoError(t, err)
	require.Equal(t, 1, provider.count())

	again, err := svc.StartTracking(context.Background(), &testShopA)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.count())
	assert.Equal(t, first.Generation, again.Generation)

	svc.StopTracking()
}

func TestStartTrackingRetargetRestartsSession(t *testing.T) {
	clk := timeutil.NewFake(time.Unix(1700000000, 0))
	svc, provider, presenter, positions := newTestRouteService(clk)
	positions.set(testOrigin)

	_, err := svc.StartTracking(context.Background(), &testShopA)
	require.NoError(t, err)

	route, err := svc.StartTracking(context.Background(), &testShopB)
	require.NoError(t, err)
	assert.Equal(t, testShopB.ID, route.TargetID)
	assert.Equal(t, 2, provider.count())
	assert.Equal(t, 1, presenter.clearCount(), "retargeting clears the old polyline")

	snap := svc.Snapshot()
	assert.True(t, snap.Tracking)
	assert.Equal(t, testShopB.ID, snap.TargetID)

	svc.StopTracking()
}

func TestStartTrackingWithoutPosition(t *testing.T) {
	svc, provider, _, _ := newTestRouteService(nil)

	_, err := svc.StartTracking(context.Background(), &testShopA)

	require.ErrorIs(t, err, domainerrors.ErrNoPosition)
	assert.Equal(t, 0, provider.count())
	assert.False(t, svc.Snapshot().Tracking, "a failed start must not leave a session behind")
}

func TestPauseSuppressesRefreshes(t *testing.T) {
	clk := timeutil.NewFake(time.Unix(1700000000, 0))
	svc, provider, _, positions := newTestRouteService(clk)
	positions.set(testOrigin)

	_, err := svc.StartTracking(context.Background(), &testShopA)
	require.NoError(t, err)
	require.Equal(t, 1, provider.count())
	clk.BlockUntil(1)

	svc.Pause()

	// Position updates are swallowed while paused.
	positions.set(moveNorth(testOrigin, 100))
	svc.HandlePosition(entity.UserPosition{Coord: moveNorth(testOrigin, 100)})
	assert.Equal(t, 1, provider.count())

	// The periodic tick fires but routes nothing; StopTracking joins the
	// refresh loop so the count below is final.
	clk.Advance(45 * time.Second)
	svc.StopTracking()
	assert.Equal(t, 1, provider.count())

	// The held route stayed presented the whole time.
	snap := svc.Snapshot()
	assert.False(t, snap.Tracking)
}

func TestResumeRestoresPositionDrivenRefresh(t *testing.T) {
	clk := timeutil.NewFake(time.Unix(1700000000, 0))
	svc, provider, _, positions := newTestRouteService(clk)
	positions.set(testOrigin)

	_, err := svc.StartTracking(context.Background(), &testShopA)
	require.NoError(t, err)
	require.Equal(t, 1, provider.count())

	svc.Pause()
	svc.Resume()

	moved := moveNorth(testOrigin, 100)
	positions.set(moved)
	svc.HandlePosition(entity.UserPosition{Coord: moved})
	assert.Equal(t, 2, provider.count())

	svc.StopTracking()
}

func TestHandlePositionHonorsDebounce(t *testing.T) {
	clk := timeutil.NewFake(time.Unix(1700000000, 0))
	svc, provider, _, positions := newTestRouteService(clk)
	positions.set(testOrigin)

	_, err := svc.StartTracking(context.Background(), &testShopA)
	require.NoError(t, err)
	require.Equal(t, 1, provider.count())

	// A ten-meter drift while tracking stays under the movement gate.
	drifted := moveNorth(testOrigin, 10)
	positions.set(drifted)
	svc.HandlePosition(entity.UserPosition{Coord: drifted})
	assert.Equal(t, 1, provider.count())

	// Real movement routes again.
	moved := moveNorth(testOrigin, 75)
	positions.set(moved)
	svc.HandlePosition(entity.UserPosition{Coord: moved})
	assert.Equal(t, 2, provider.count())

	svc.StopTracking()
}

func TestHandlePositionIgnoredWhenNotTracking(t *testing.T) {
	svc, provider, _, positions := newTestRouteService(nil)
	positions.set(testOrigin)

	svc.HandlePosition(entity.UserPosition{Coord: testOrigin})

	assert.Equal(t, 0, provider.count())
}
