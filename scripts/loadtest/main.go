// Loadtest sends concurrent requests to the edge service and reports
// throughput, latency percentiles and how requests spread over instances.
//
// Usage:
//
//	go run ./scripts/loadtest -url http://localhost:8080/ping -concurrency 10 -requests 1000
//	go run ./scripts/loadtest -url http://localhost:8080/greetings/Ash -out summary.json
//
// Each request carries a distinct X-Forwarded-For value so the client-hash
// strategy can be observed spreading keys over instances.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
)

const headerInstanceID = "X-Instance-Id"

type instanceStats struct {
	Count     int32
	Success   int32
	Failure   int32
	Latencies []time.Duration
}

type instanceSummary struct {
	Total   int32   `json:"total"`
	Success int32   `json:"success"`
	Failure int32   `json:"failure"`
	P50     float64 `json:"p50_ms"`
	P90     float64 `json:"p90_ms"`
	P99     float64 `json:"p99_ms"`
}

type summary struct {
	Target        string                     `json:"target"`
	Requests      int                        `json:"requests"`
	Concurrency   int                        `json:"concurrency"`
	Success       int32                      `json:"success"`
	Failure       int32                      `json:"failure"`
	DurationMS    int64                      `json:"duration_ms"`
	ThroughputRPS float64                    `json:"throughput_rps"`
	StatusCodes   map[int]int32              `json:"status_codes"`
	Instances     map[string]instanceSummary `json:"instances"`
}

func main() {
	var (
		url         = flag.String("url", "http://localhost:8080/ping", "Target URL")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 100, "Total number of requests to send")
		clients     = flag.Int("clients", 50, "Distinct X-Forwarded-For addresses to cycle through")
		timeout     = flag.Duration("timeout", 10*time.Second, "Per-request timeout")
		outJSON     = flag.String("out", "", "Write JSON summary to this file (optional)")
		verbose     = flag.Bool("v", false, "Verbose per-request logging to stdout")
	)
	flag.Parse()

	client := &http.Client{Timeout: *timeout}

	var (
		success, failure atomic.Int32
		mu               sync.Mutex
		all              []time.Duration
		statusCodes      = make(map[int]int32)
		instances        = make(map[string]*instanceStats)
	)

	record := func(instance string, status int, dur time.Duration) {
		mu.Lock()
		defer mu.Unlock()

		all = append(all, dur)
		statusCodes[status]++

		st, ok := instances[instance]
		if !ok {
			st = &instanceStats{}
			instances[instance] = st
		}
		st.Count++
		if status >= 200 && status <= 299 {
			st.Success++
		} else {
			st.Failure++
		}
		st.Latencies = append(st.Latencies, dur)
	}

	p := pool.New().WithMaxGoroutines(*concurrency)
	start := time.Now()

	for i := 0; i < *requests; i++ {
		idx := i
		p.Go(func() {
			req, err := http.NewRequest(http.MethodGet, *url, nil)
			if err != nil {
				failure.Add(1)
				return
			}
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("192.168.1.%d", (idx%*clients)+1))

			began := time.Now()
			resp, err := client.Do(req)
			dur := time.Since(began)
			if err != nil {
				failure.Add(1)
				if *verbose {
					fmt.Printf("idx=%d error=%v\n", idx, err)
				}
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
				success.Add(1)
			} else {
				failure.Add(1)
			}

			instance := resp.Header.Get(headerInstanceID)
			if instance == "" {
				instance = "(unknown)"
			}
			record(instance, resp.StatusCode, dur)

			if *verbose {
				fmt.Printf("idx=%d instance=%s status=%d dur=%v\n", idx, instance, resp.StatusCode, dur)
			}
		})
	}
	p.Wait()

	elapsed := time.Since(start)
	report := summary{
		Target:        *url,
		Requests:      *requests,
		Concurrency:   *concurrency,
		Success:       success.Load(),
		Failure:       failure.Load(),
		DurationMS:    elapsed.Milliseconds(),
		ThroughputRPS: float64(*requests) / elapsed.Seconds(),
		StatusCodes:   statusCodes,
		Instances:     make(map[string]instanceSummary, len(instances)),
	}

	fmt.Println("--- Load Test Summary ---")
	fmt.Printf("Target: %s\n", report.Target)
	fmt.Printf("Requests: %d  Concurrency: %d\n", report.Requests, report.Concurrency)
	fmt.Printf("Success: %d  Failure: %d\n", report.Success, report.Failure)
	fmt.Printf("Duration: %v  Throughput: %.2f req/s\n", elapsed, report.ThroughputRPS)

	fmt.Println("\nStatus codes:")
	codes := make([]int, 0, len(statusCodes))
	for c := range statusCodes {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	for _, c := range codes {
		fmt.Printf("  %d -> %d\n", c, statusCodes[c])
	}

	fmt.Println("\nInstance distribution:")
	ids := make([]string, 0, len(instances))
	for id := range instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := instances[id]
		lat := sorted(st.Latencies)
		s := instanceSummary{
			Total:   st.Count,
			Success: st.Success,
			Failure: st.Failure,
			P50:     ms(percentile(lat, 0.50)),
			P90:     ms(percentile(lat, 0.90)),
			P99:     ms(percentile(lat, 0.99)),
		}
		report.Instances[id] = s
		fmt.Printf("  %s -> total=%d success=%d failure=%d p50=%.1fms p90=%.1fms p99=%.1fms\n",
			id, s.Total, s.Success, s.Failure, s.P50, s.P90, s.P99)
	}

	if lat := sorted(all); len(lat) > 0 {
		fmt.Println("\nOverall latencies:")
		fmt.Printf("  samples=%d min=%v max=%v p50=%v p90=%v p99=%v\n",
			len(lat), lat[0], lat[len(lat)-1], percentile(lat, 0.50), percentile(lat, 0.90), percentile(lat, 0.99))
	}

	fmt.Printf("\nGOMAXPROCS=%d  NumGoroutine=%d\n", runtime.GOMAXPROCS(0), runtime.NumGoroutine())

	if *outJSON != "" {
		f, err := os.Create(*outJSON)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create json file: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write json summary: %v\n", err)
		}
		f.Close()
		fmt.Printf("\nWrote JSON summary to %s\n", *outJSON)
	}

	if report.Failure > 0 {
		os.Exit(2)
	}
}

func sorted(d []time.Duration) []time.Duration {
	out := slices.Clone(d)
	slices.Sort(out)
	return out
}

// percentile expects a sorted slice.
func percentile(d []time.Duration, pct float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	return d[int(float64(len(d)-1)*pct)]
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
