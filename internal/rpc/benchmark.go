package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Mohsinsiddi/idodeploy/internal/chain"
)

// probeTimeout bounds a single endpoint probe.
const probeTimeout = 5 * time.Second

// Probe pings url and checks that it serves expectedChainID (0 skips the
// check). An endpoint on the wrong chain is reported unhealthy.
func Probe(ctx context.Context, url string, expectedChainID int64) Endpoint {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	c := chain.NewEVMClient(url)
	latency, block, err := c.Ping(ctx)
	ep := Endpoint{URL: url, Latency: latency, BlockNumber: block, Err: err}
	if err != nil {
		return ep
	}

	if expectedChainID != 0 {
		id, err := c.ChainID(ctx)
		if err != nil {
			ep.Err = err
			return ep
		}
		if id.Int64() != expectedChainID {
			ep.Err = fmt.Errorf("chain ID %s, expected %d", id, expectedChainID)
			return ep
		}
	}
	ep.Healthy = true
	return ep
}

// Benchmark probes all urls in parallel. Results keep the order of urls.
func Benchmark(ctx context.Context, urls []string, expectedChainID int64) []Endpoint {
	results := make([]Endpoint, len(urls))
	var wg sync.WaitGroup

	for i, url := range urls {
		wg.Add(1)
		go func(idx int, u string) {
			defer wg.Done()
			results[idx] = Probe(ctx, u, expectedChainID)
		}(i, url)
	}

	wg.Wait()
	return results
}

// Select returns the URL to use for a network. A single URL is returned
// without probing.
func Select(ctx context.Context, urls []string, algo Algorithm, expectedChainID int64, logger *slog.Logger) (string, error) {
	switch len(urls) {
	case 0:
		return "", ErrNoHealthyRPC
	case 1:
		return urls[0], nil
	}

	endpoints := Benchmark(ctx, urls, expectedChainID)
	for _, e := range endpoints {
		if logger == nil {
			break
		}
		if e.Err != nil {
			logger.Debug("rpc probe failed", slog.String("url", e.URL), slog.String("err", e.Err.Error()))
			continue
		}
		logger.Debug("rpc probe",
			slog.String("url", e.URL),
			slog.Duration("latency", e.Latency),
			slog.Uint64("block", e.BlockNumber))
	}

	winner, err := NewPicker(algo).Pick(endpoints)
	if err != nil {
		return "", err
	}
	return winner.URL, nil
}
