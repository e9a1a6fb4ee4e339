package solana

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

const defaultHealthTimeout = 2 * time.Second

// EndpointHealth is the result of probing one RPC endpoint with getHealth.
type EndpointHealth struct {
	URL     string        `json:"url"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// CheckEndpoints probes every endpoint concurrently. Results keep the input order.
func CheckEndpoints(ctx context.Context, endpoints []string, timeout time.Duration) []EndpointHealth {
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	results := make([]EndpointHealth, len(endpoints))

	var wg sync.WaitGroup
	for i, url := range endpoints {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			results[i] = checkEndpoint(ctx, url, timeout)
		}(i, url)
	}
	wg.Wait()

	return results
}

func checkEndpoint(ctx context.Context, url string, timeout time.Duration) EndpointHealth {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	status, err := rpc.New(url).GetHealth(ctx)
	res := EndpointHealth{URL: url, Latency: time.Since(start)}
	switch {
	case err != nil:
		res.Error = err.Error()
	case status != rpc.HealthOk:
		res.Error = "unhealthy: " + status
	default:
		res.OK = true
	}
	return res
}
