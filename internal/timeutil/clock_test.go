package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeTimerFiresOnAdvance(t *testing.T) {
	clk := NewFake(time.Unix(1700000000, 0))
	timer := clk.NewTimer(10 * time.Second)

	clk.Advance(9 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("timer fired early")
	default:
	}

	clk.Advance(time.Second)
	select {
	case fired := <-timer.C():
		assert.Equal(t, clk.Now(), fired)
	default:
		t.Fatal("timer did not fire at its deadline")
	}
}

func TestFakeTimerStop(t *testing.T) {
	clk := NewFake(time.Unix(1700000000, 0))
	timer := clk.NewTimer(time.Second)

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	clk.Advance(2 * time.Second)
	select {
	case <-timer.C():
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFakeTickerFiresPerInterval(t *testing.T) {
	clk := NewFake(time.Unix(1700000000, 0))
	ticker := clk.NewTicker(45 * time.Second)

	clk.Advance(45 * time.Second)
	require.Len(t, drain(ticker.C()), 1)

	clk.Advance(44 * time.Second)
	require.Empty(t, drain(ticker.C()))

	clk.Advance(time.Second)
	require.Len(t, drain(ticker.C()), 1)

	ticker.Stop()
	clk.Advance(90 * time.Second)
	require.Empty(t, drain(ticker.C()))
}

func TestFakeSince(t *testing.T) {
	start := time.Unix(1700000000, 0)
	clk := NewFake(start)

	clk.Advance(90 * time.Second)
	assert.Equal(t, 90*time.Second, clk.Since(start))
}

func TestFakeBlockUntil(t *testing.T) {
	clk := NewFake(time.Unix(1700000000, 0))

	armed := make(chan struct{})
	go func() {
		clk.BlockUntil(1)
		close(armed)
	}()

	select {
	case <-armed:
		t.Fatal("BlockUntil returned before any timer existed")
	case <-time.After(20 * time.Millisecond):
	}

	clk.NewTimer(time.Second)
	select {
	case <-armed:
	case <-time.After(time.Second):
		t.Fatal("BlockUntil did not observe the new timer")
	}
}

func drain(ch <-chan time.Time) []time.Time {
	var out []time.Time
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
