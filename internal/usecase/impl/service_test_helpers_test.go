package impl

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"shopradar/internal/domain/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// moveNorth displaces a coordinate straight north by the given number of
// meters. Pure latitude displacement keeps the haversine distance exact,
// so tests can sit precisely on either side of the movement threshold.
func moveNorth(c entity.Coordinate, meters float64) entity.Coordinate {
	return entity.Coordinate{
		Lat: c.Lat + meters/6371000.0*180/math.Pi,
		Lng: c.Lng,
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
	}
}

func waitPosition(t *testing.T, ch <-chan entity.UserPosition) entity.UserPosition {
	t.Helper()
	select {
	case pos := <-ch:
		return pos
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a position")
		return entity.UserPosition{}
	}
}

func waitError(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for an error")
		return nil
	}
}
