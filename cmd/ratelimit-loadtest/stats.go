package main

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// outcome tallies limiter decisions for one phase.
type outcome struct {
	admitted atomic.Int64
	denied   atomic.Int64
	failures atomic.Int64
}

type report struct {
	name     string
	elapsed  time.Duration
	samples  int
	admitted int64
	denied   int64
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
}

// hitFunc performs hit number i and reports whether the limiter admitted it.
type hitFunc func(rng *rand.Rand, i int) (bool, error)

// runPhase spreads ops hits over workers goroutines. Each worker keeps its own
// latency samples, which are merged once every worker has stopped.
func runPhase(name string, ops, workers int, hit hitFunc) report {
	var (
		next    atomic.Int64
		tally   outcome
		wg      sync.WaitGroup
		perWork = make([][]time.Duration, workers)
	)

	started := time.Now()
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(started.UnixNano()), uint64(w)))
			for {
				i := int(next.Add(1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok, err := hit(rng, i)
				perWork[w] = append(perWork[w], time.Since(t0))
				switch {
				case err != nil:
					tally.failures.Add(1)
				case ok:
					tally.admitted.Add(1)
				default:
					tally.denied.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	latencies := slices.Concat(perWork...)
	slices.Sort(latencies)
	return report{
		name:     name,
		elapsed:  time.Since(started),
		samples:  len(latencies),
		admitted: tally.admitted.Load(),
		denied:   tally.denied.Load(),
		failures: tally.failures.Load(),
		p50:      percentile(latencies, 50),
		p95:      percentile(latencies, 95),
		p99:      percentile(latencies, 99),
	}
}

// percentile reads the p-th percentile from sorted samples using the nearest-rank-below rule.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	p = min(max(p, 0), 100)
	return sorted[(len(sorted)-1)*p/100]
}

func (r report) String() string {
	rate := 0.0
	if r.elapsed > 0 {
		rate = float64(r.samples) / r.elapsed.Seconds()
	}
	return fmt.Sprintf("%-10s hits=%d admitted=%d denied=%d errors=%d elapsed=%s rate=%.0f/s p50=%s p95=%s p99=%s",
		r.name, r.samples, r.admitted, r.denied, r.failures,
		r.elapsed.Round(time.Millisecond), rate,
		r.p50.Round(time.Microsecond), r.p95.Round(time.Microsecond), r.p99.Round(time.Microsecond))
}
