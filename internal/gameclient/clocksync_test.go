package gameclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSampler собирает сэмплер с детерминированными часами: каждый замер
// видит rtt в 10мс, серверное время задаётся смещением offsets[i];
// offsets[i] == nil — замер падает.
func scriptedSampler(t *testing.T, offsets []*int64, applied *[]int64) *clockSampler {
	t.Helper()

	base := time.UnixMilli(1_000_000_000)
	const rtt = 10 * time.Millisecond

	idx := 0
	now := func() time.Time {
		// два вызова на замер: tx и rx
		tx := base.Add(time.Duration(idx/2) * time.Second)
		if idx%2 == 1 {
			tx = tx.Add(rtt)
		}
		idx++
		return tx
	}

	sample := 0
	call := func(context.Context) (int64, error) {
		off := offsets[sample]
		txMs := base.Add(time.Duration(sample) * time.Second).UnixMilli()
		sample++
		if off == nil {
			return 0, errors.New("boom")
		}
		// remote = tx + rtt/2 + offset, тогда замер даст ровно offset
		return txMs + rtt.Milliseconds()/2 + *off, nil
	}

	s := newClockSampler(len(offsets), time.Hour, call, func(d int64) {
		*applied = append(*applied, d)
	}, zerolog.Nop())
	s.now = now
	return s
}

func ptr(v int64) *int64 { return &v }

func TestClockSamplerAllSucceed(t *testing.T) {
	var applied []int64
	s := scriptedSampler(t, []*int64{ptr(100), ptr(100), ptr(100), ptr(100), ptr(100)}, &applied)

	s.sampleRound()
	require.Equal(t, []int64{100}, applied)
}

func TestClockSamplerIgnoresFailedSamples(t *testing.T) {
	// 100, fail, 101, fail, 103 → floor(304/3) = 101
	var applied []int64
	s := scriptedSampler(t, []*int64{ptr(100), nil, ptr(101), nil, ptr(103)}, &applied)

	s.sampleRound()
	require.Equal(t, []int64{101}, applied)
}

func TestClockSamplerKeepsPreviousWhenRoundFails(t *testing.T) {
	var applied []int64
	s := scriptedSampler(t, []*int64{nil, nil, nil, nil, nil}, &applied)

	s.sampleRound()
	assert.Empty(t, applied, "при полностью неудачном раунде поправка не трогается")
}

func TestClockSamplerFloorsNegativeAverage(t *testing.T) {
	// -3 и -4 → floor(-7/2) = -4, а не -3
	var applied []int64
	s := scriptedSampler(t, []*int64{ptr(-3), ptr(-4)}, &applied)

	s.sampleRound()
	require.Equal(t, []int64{-4}, applied)
}

func TestClockSamplerStopInterruptsInflightCall(t *testing.T) {
	started := make(chan struct{})
	call := func(ctx context.Context) (int64, error) {
		close(started)
		<-ctx.Done() // висим до отмены, как настоящий Call
		return 0, ctx.Err()
	}
	s := newClockSampler(5, time.Hour, call, func(int64) {}, zerolog.Nop())

	go s.run()
	<-started

	done := make(chan struct{})
	go func() {
		s.stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
}

func TestFloorDiv(t *testing.T) {
	cases := []struct{ a, b, want int64 }{
		{10, 2, 5},
		{7, 2, 3},
		{-7, 2, -4},
		{-8, 2, -4},
		{1, 3, 0},
		{-1, 3, -1},
		{304, 3, 101},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, floorDiv(tc.a, tc.b), "floorDiv(%d, %d)", tc.a, tc.b)
	}
}
