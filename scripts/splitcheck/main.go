// Splitcheck fires concurrent GETs at the router and reports how fresh
// clients were split between the variants, plus latency percentiles.
//
// Usage:
//
//	go run ./scripts/splitcheck -url http://localhost:8080 -concurrency 20 -requests 1000
//	go run ./scripts/splitcheck -url http://localhost:8080 -sticky -out summary.json
//
// Without -sticky every request is cookie-less, so each one is a fresh
// assignment read back from Set-Cookie. With -sticky each request replays the
// cookie it was given and checks that the router keeps the same variant
// without issuing a new cookie.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type variantStats struct {
	Count     int             `json:"count"`
	Latencies []time.Duration `json:"-"`
}

type summary struct {
	Target        string                 `json:"target"`
	Requests      int                    `json:"requests"`
	Concurrency   int                    `json:"concurrency"`
	Failures      int32                  `json:"failures"`
	StickyBroken  int32                  `json:"sticky_broken"`
	DurationMS    int64                  `json:"duration_ms"`
	ThroughputRPS float64                `json:"throughput_rps"`
	Split         map[string]int         `json:"split"`
	Latency       map[string]percentiles `json:"latency_ms"`
	StatusCodes   map[int]int            `json:"status_codes"`
}

type percentiles struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

func main() {
	var (
		url         = flag.String("url", "http://localhost:8080/", "Router URL")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 500, "Total number of requests to send")
		timeout     = flag.Duration("timeout", 10*time.Second, "Per-request timeout")
		sticky      = flag.Bool("sticky", false, "Replay the assigned cookie on a second request")
		outJSON     = flag.String("out", "", "Write JSON summary to this file (optional)")
		verbose     = flag.Bool("v", false, "Verbose per-request logging to stdout")
	)
	flag.Parse()

	client := &http.Client{Timeout: *timeout}

	var (
		failures     atomic.Int32
		stickyBroken atomic.Int32
		mu           sync.Mutex
		wg           sync.WaitGroup
	)
	stats := make(map[string]*variantStats)
	statusCodes := make(map[int]int)

	jobs := make(chan int)
	testStart := time.Now()

	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				start := time.Now()
				status, variant, err := get(client, *url, "")
				dur := time.Since(start)
				if err != nil {
					failures.Add(1)
					if *verbose {
						fmt.Printf("[%d] idx=%d error=%v\n", workerID, idx, err)
					}
					continue
				}

				mu.Lock()
				statusCodes[status]++
				if variant == "" {
					variant = "(no cookie)"
				}
				vs, ok := stats[variant]
				if !ok {
					vs = &variantStats{}
					stats[variant] = vs
				}
				vs.Count++
				vs.Latencies = append(vs.Latencies, dur)
				mu.Unlock()

				if *verbose {
					fmt.Printf("[%d] idx=%d variant=%s status=%d dur=%v\n", workerID, idx, variant, status, dur)
				}

				if *sticky && status == http.StatusOK && (variant == "0" || variant == "1") {
					_, again, err := get(client, *url, "variant="+variant)
					if err != nil {
						failures.Add(1)
						continue
					}
					// A sticky request must not be handed a new cookie.
					if again != "" {
						stickyBroken.Add(1)
					}
				}
			}
		}(w)
	}

	go func() {
		for i := 0; i < *requests; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	wg.Wait()
	elapsed := time.Since(testStart)

	report := summary{
		Target:        *url,
		Requests:      *requests,
		Concurrency:   *concurrency,
		Failures:      failures.Load(),
		StickyBroken:  stickyBroken.Load(),
		DurationMS:    elapsed.Milliseconds(),
		ThroughputRPS: float64(*requests) / elapsed.Seconds(),
		Split:         make(map[string]int),
		Latency:       make(map[string]percentiles),
		StatusCodes:   statusCodes,
	}

	fmt.Println("--- Split Check Summary ---")
	fmt.Printf("Target: %s\n", *url)
	fmt.Printf("Requests: %d  Concurrency: %d  Failures: %d\n", *requests, *concurrency, report.Failures)
	fmt.Printf("Duration: %v  Throughput: %.2f req/s\n", elapsed, report.ThroughputRPS)

	var keys []string
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println("\nVariant split:")
	for _, k := range keys {
		vs := stats[k]
		p := latencyPercentiles(vs.Latencies)
		report.Split[k] = vs.Count
		report.Latency[k] = p
		fmt.Printf("  variant %s -> %d (%.1f%%)  p50=%.1fms p90=%.1fms p99=%.1fms max=%.1fms\n",
			k, vs.Count, 100*float64(vs.Count)/float64(*requests), p.P50, p.P90, p.P99, p.Max)
	}

	if *sticky {
		fmt.Printf("\nSticky replays that received a new cookie: %d\n", report.StickyBroken)
	}

	if *outJSON != "" {
		f, err := os.Create(*outJSON)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create json file: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		enc.Encode(report)
		f.Close()
		fmt.Printf("\nWrote JSON summary to %s\n", *outJSON)
	}

	if report.Failures > 0 || report.StickyBroken > 0 {
		os.Exit(2)
	}
}

// get issues one GET and returns the status and the variant from Set-Cookie,
// empty when the router did not set one.
func get(client *http.Client, url, cookie string) (int, string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	for _, c := range resp.Cookies() {
		if c.Name == "variant" {
			return resp.StatusCode, c.Value, nil
		}
	}
	return resp.StatusCode, "", nil
}

func latencyPercentiles(latencies []time.Duration) percentiles {
	if len(latencies) == 0 {
		return percentiles{}
	}

	tmp := make([]time.Duration, len(latencies))
	copy(tmp, latencies)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })

	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }
	pick := func(p float64) float64 { return ms(tmp[int(float64(len(tmp)-1)*p)]) }

	return percentiles{
		P50: pick(0.50),
		P90: pick(0.90),
		P99: pick(0.99),
		Max: ms(tmp[len(tmp)-1]),
	}
}
