package fsds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/secfacts/internal/infra"
)

func TestResolveVariants(t *testing.T) {
	sec := newFakeSEC(t)
	r := sec.resolver(infra.NewFakeClock(testNow))
	ctx := context.Background()

	tests := []struct {
		input   string
		wantCIK int64
		wantTkr string
	}{
		{"AAPL", appleCIK, "AAPL"},
		{"aapl", appleCIK, "AAPL"},
		{"  msft ", microsoftCIK, "MSFT"},
		{"BRK-B", 1067983, "BRK-B"},
		{"BRK.B", 1067983, "BRK-B"},
		{"brk.b", 1067983, "BRK-B"},
		{"BRKB", 1067983, "BRK-B"},
		{"BRK/A", 1067983, "BRK-A"},
	}
	for _, tc := range tests {
		got, err := r.Resolve(ctx, tc.input)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tc.input, err)
			continue
		}
		if got.FilerID != tc.wantCIK || got.Ticker != tc.wantTkr {
			t.Errorf("Resolve(%q): got %s/%d, want %s/%d", tc.input, got.Ticker, got.FilerID, tc.wantTkr, tc.wantCIK)
		}
	}

	dot, err := r.Resolve(ctx, "BRK.B")
	require.NoError(t, err)
	dash, err := r.Resolve(ctx, "BRK-B")
	require.NoError(t, err)
	assert.Equal(t, dot, dash, "separator variants must resolve identically")
	assert.Equal(t, "0001067983", dash.PaddedCIK())
}

func TestResolveNotFound(t *testing.T) {
	sec := newFakeSEC(t)
	r := sec.resolver(infra.NewFakeClock(testNow))

	for _, input := range []string{"ZZZZNOPE", "", "   "} {
		_, err := r.Resolve(context.Background(), input)
		if !errors.Is(err, ErrTickerNotFound) {
			t.Errorf("Resolve(%q): got %v, want ErrTickerNotFound", input, err)
		}
	}

	_, err := r.Resolve(context.Background(), "ZZZZNOPE")
	var tnf *TickerNotFoundError
	require.ErrorAs(t, err, &tnf)
	assert.Equal(t, "ZZZZNOPE", tnf.Ticker)
}

func TestResolverCachesIndex(t *testing.T) {
	sec := newFakeSEC(t)
	clock := infra.NewFakeClock(testNow)
	r := sec.resolver(clock)
	ctx := context.Background()

	for _, tk := range []string{"AAPL", "MSFT", "ZZZZNOPE", "BRK.B"} {
		r.Resolve(ctx, tk)
	}
	assert.Equal(t, 1, sec.hitCount("/files/company_tickers.json"), "index should be downloaded once")

	clock.Advance(time.Hour)
	_, err := r.Resolve(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, sec.hitCount("/files/company_tickers.json"), "expired index should be downloaded again")
}

func TestResolverSharedDownloadSurvivesCancel(t *testing.T) {
	sec := newFakeSEC(t)
	sec.setDelay(200 * time.Millisecond)
	r := sec.resolver(infra.NewFakeClock(testNow))

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(first, "AAPL")
		firstErr <- err
	}()
	time.Sleep(30 * time.Millisecond)

	second := make(chan error, 1)
	go func() {
		filer, err := r.Resolve(context.Background(), "MSFT")
		if err == nil && filer.FilerID != microsoftCIK {
			err = errors.New("wrong filer")
		}
		second <- err
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	assert.NoError(t, <-second)
	assert.Equal(t, 1, sec.hitCount("/files/company_tickers.json"))
}

func TestResolverIndexFailure(t *testing.T) {
	sec := newFakeSEC(t)
	r := NewResolver(sec.client(), sec.URL+"/missing.json", time.Hour, nil, quietLog())

	_, err := r.Resolve(context.Background(), "AAPL")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTickerNotFound), "a download failure is not a missing ticker")
	assert.True(t, infra.IsNotFound(err))
}

func TestLookup(t *testing.T) {
	sec := newFakeSEC(t)
	r := sec.resolver(nil)

	got, err := r.Lookup(context.Background(), "berkshire", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BRK-B", got[0].Ticker)

	got, err = r.Lookup(context.Background(), "brk.a", 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "BRK-A", got[0].Ticker, "exact ticker match comes first")

	got, err = r.Lookup(context.Background(), "320193", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Apple Inc.", got[0].Name)
}

func TestTickerVariants(t *testing.T) {
	got := tickerVariants("brk.b")
	want := []string{"BRK.B", "BRK-B", "BRKB"}
	assert.Equal(t, want, got)
}
