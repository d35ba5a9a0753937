package rpc_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Mohsinsiddi/idodeploy/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthy(url string, latency time.Duration, block uint64) rpc.Endpoint {
	return rpc.Endpoint{URL: url, Latency: latency, BlockNumber: block, Healthy: true}
}

func down(url string) rpc.Endpoint {
	return rpc.Endpoint{URL: url, Err: errors.New("connection refused")}
}

func TestPickerSelectsFastest(t *testing.T) {
	endpoints := []rpc.Endpoint{
		healthy("http://slow.rpc", 200*time.Millisecond, 100),
		healthy("http://fast.rpc", 30*time.Millisecond, 100),
		healthy("http://medium.rpc", 80*time.Millisecond, 100),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://fast.rpc", winner.URL)
}

func TestPickerEmptyAlgorithmIsFastest(t *testing.T) {
	endpoints := []rpc.Endpoint{
		healthy("http://slow.rpc", 200*time.Millisecond, 100),
		healthy("http://fast.rpc", 30*time.Millisecond, 100),
	}
	winner, err := rpc.NewPicker("").Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://fast.rpc", winner.URL)
}

func TestPickerDiscardsStaleNodes(t *testing.T) {
	endpoints := []rpc.Endpoint{
		healthy("http://fresh.rpc", 50*time.Millisecond, 1000),
		healthy("http://stale.rpc", 10*time.Millisecond, 990), // 10 blocks behind
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://fresh.rpc", winner.URL, "stale node should be discarded even if faster")
}

func TestPickerFastestIgnoresUnhealthyBlockHeight(t *testing.T) {
	endpoints := []rpc.Endpoint{
		{URL: "http://wrong-chain.rpc", BlockNumber: 9_000_000, Latency: time.Millisecond},
		healthy("http://ok.rpc", 50*time.Millisecond, 1000),
	}
	winner, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://ok.rpc", winner.URL)
}

func TestPickerRoundRobinCycles(t *testing.T) {
	endpoints := []rpc.Endpoint{
		healthy("http://rpc1", 0, 100),
		down("http://rpc2"),
		healthy("http://rpc3", 0, 100),
	}

	picker := rpc.NewPicker(rpc.AlgorithmRoundRobin)
	var urls []string
	for n := 0; n < 4; n++ {
		e, err := picker.Pick(endpoints)
		require.NoError(t, err)
		urls = append(urls, e.URL)
	}
	assert.Equal(t, []string{"http://rpc1", "http://rpc3", "http://rpc1", "http://rpc3"}, urls)
}

func TestPickerFailover(t *testing.T) {
	endpoints := []rpc.Endpoint{
		down("http://primary"),
		healthy("http://secondary", 0, 100),
		healthy("http://tertiary", 0, 100),
	}

	winner, err := rpc.NewPicker(rpc.AlgorithmFailover).Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://secondary", winner.URL)
}

func TestPickerErrorsWhenAllUnhealthy(t *testing.T) {
	endpoints := []rpc.Endpoint{down("http://a"), down("http://b")}
	for _, algo := range []rpc.Algorithm{rpc.AlgorithmFastest, rpc.AlgorithmRoundRobin, rpc.AlgorithmFailover} {
		_, err := rpc.NewPicker(algo).Pick(endpoints)
		assert.ErrorIs(t, err, rpc.ErrNoHealthyRPC, string(algo))
	}
}

func TestPickerEmptyEndpoints(t *testing.T) {
	_, err := rpc.NewPicker(rpc.AlgorithmFastest).Pick(nil)
	assert.ErrorIs(t, err, rpc.ErrNoHealthyRPC)
}
