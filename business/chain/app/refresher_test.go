package app

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/amm-connector/business/chain/domain"
	"github.com/fd1az/amm-connector/internal/logger"
)

// scriptedSource returns queued results in order, then repeats the last one.
type scriptedSource struct {
	mu      sync.Mutex
	results []sourceResult
	calls   int
}

type sourceResult struct {
	wei   *big.Int
	err   error
	panic bool
}

func (s *scriptedSource) SuggestGasPrice(context.Context) (*big.Int, error) {
	s.mu.Lock()
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	r := s.results[i]
	s.mu.Unlock()

	if r.panic {
		panic("node exploded")
	}
	return r.wei, r.err
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var manualPrice = domain.NewGasPriceFromGwei(decimal.NewFromInt(30))

func newTestRefresher(t *testing.T, src GasPriceSource, interval time.Duration, opts ...RefresherOption) *GasPriceRefresher {
	t.Helper()
	r, err := NewGasPriceRefresher(src, manualPrice, interval, logger.Nop(), opts...)
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}

func TestRefresher_NoIntervalNeverSchedules(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{{wei: big.NewInt(5)}}}
	r := newTestRefresher(t, src, 0)

	r.Start(context.Background())
	time.Sleep(20 * time.Millisecond)

	assert.False(t, r.Running())
	assert.Equal(t, 0, src.Calls())
	assert.Equal(t, manualPrice, r.GasPrice())
}

func TestRefresher_UpdatesPrice(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{{wei: big.NewInt(2e9)}}}
	r := newTestRefresher(t, src, 5*time.Millisecond)

	r.Start(context.Background())
	require.Eventually(t, func() bool { return r.Refreshes() >= 1 }, time.Second, time.Millisecond)

	assert.True(t, r.Running())
	assert.Equal(t, "2000000000", r.GasPrice().Wei.String())
}

func TestRefresher_UnusableValueKeepsPreviousAndRearms(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{
		{wei: big.NewInt(3e9)},
		{wei: nil},
		{wei: big.NewInt(-1)},
		{err: errors.New("timeout")},
		{panic: true},
	}}
	r := newTestRefresher(t, src, 2*time.Millisecond)

	r.Start(context.Background())
	require.Eventually(t, func() bool { return r.Refreshes() >= 6 }, 2*time.Second, time.Millisecond)

	assert.True(t, r.Running(), "loop keeps running after bad values and panics")
	assert.Equal(t, "3000000000", r.GasPrice().Wei.String())
}

func TestRefresher_ClampsToMax(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{{wei: big.NewInt(900e9)}}}
	r := newTestRefresher(t, src, 5*time.Millisecond, WithMaxGasPrice(big.NewInt(500e9)))

	r.Start(context.Background())
	require.Eventually(t, func() bool { return r.Refreshes() >= 1 }, time.Second, time.Millisecond)

	assert.Equal(t, "500000000000", r.GasPrice().Wei.String())
}

func TestRefresher_StopHaltsFetches(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{{wei: big.NewInt(1)}}}
	r := newTestRefresher(t, src, time.Millisecond)

	r.Start(context.Background())
	require.Eventually(t, func() bool { return r.Refreshes() >= 2 }, time.Second, time.Millisecond)

	r.Stop()
	assert.False(t, r.Running())

	calls := src.Calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, src.Calls(), "no fetch after Stop returns")

	r.Stop()
	r.Start(context.Background())
	assert.False(t, r.Running(), "a stopped refresher does not restart")
}

func TestRefresher_StartOutlivesCallerContext(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{{wei: big.NewInt(1)}}}
	r := newTestRefresher(t, src, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()

	before := r.Refreshes()
	require.Eventually(t, func() bool { return r.Refreshes() > before+1 }, time.Second, time.Millisecond)
}

func TestRefresher_StopBeforeStart(t *testing.T) {
	src := &scriptedSource{results: []sourceResult{{wei: big.NewInt(1)}}}
	r := newTestRefresher(t, src, time.Millisecond)

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop before Start blocked")
	}
}
