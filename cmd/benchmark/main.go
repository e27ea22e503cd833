package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/punchamoorthee/payscheduler/internal/logger"
)

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	accounts    int
	prefix      string
	bulkSize    int
)

var (
	totalRequests uint64
	created201    uint64
	partial207    uint64
	rejected422   uint64
	throttled429  uint64
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot | bulk")
	flag.IntVar(&accounts, "accounts", 1000, "Number of seeded accounts")
	flag.StringVar(&prefix, "prefix", "acct-", "Seeded account id prefix")
	flag.IntVar(&bulkSize, "bulk-size", 5, "Payees per bulk request")
}

func main() {
	flag.Parse()
	log := logger.New("info", true)
	log.Info().Str("workload", workload).Int("workers", concurrency).Dur("duration", duration).Msg("starting benchmark")

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}
	wg.Wait()

	if err := printResults(time.Since(start)); err != nil {
		log.Fatal().Err(err).Msg("could not write results")
	}
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		path, payload := nextRequest()
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest(http.MethodPost, targetURL+path, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusCreated:
			atomic.AddUint64(&created201, 1)
		case http.StatusMultiStatus:
			atomic.AddUint64(&partial207, 1)
		case http.StatusUnprocessableEntity:
			atomic.AddUint64(&rejected422, 1)
		case http.StatusTooManyRequests:
			atomic.AddUint64(&throttled429, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func nextRequest() (string, map[string]any) {
	if workload == "bulk" {
		payer := account(rand.Intn(accounts) + 1)
		payees := make([]string, 0, bulkSize)
		amounts := make([]int64, 0, bulkSize)
		for i := 0; i < bulkSize; i++ {
			payees = append(payees, account(rand.Intn(accounts)+1))
			amounts = append(amounts, 10)
		}
		return "/api/v1/payments/bulk", map[string]any{"payer": payer, "payees": payees, "amounts": amounts}
	}

	from, to := pickAccounts()
	return "/api/v1/payments", map[string]any{
		"payer":   account(from),
		"payee":   account(to),
		"amount":  100,
		"message": "benchmark",
	}
}

func pickAccounts() (int, int) {
	if workload == "hotspot" {
		// 90% of traffic contends on the first two accounts.
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return 1, 2
			}
			return 2, 1
		}
	}

	a := rand.Intn(accounts) + 1
	b := rand.Intn(accounts) + 1
	for a == b && accounts > 1 {
		b = rand.Intn(accounts) + 1
	}
	return a, b
}

func account(i int) string {
	return fmt.Sprintf("%s%04d", prefix, i)
}

func printResults(d time.Duration) error {
	total := atomic.LoadUint64(&totalRequests)
	results := map[string]any{
		"workload":       workload,
		"duration_sec":   d.Seconds(),
		"total_requests": total,
		"throughput_rps": float64(total) / d.Seconds(),
		"created":        atomic.LoadUint64(&created201),
		"partial_bulk":   atomic.LoadUint64(&partial207),
		"rejected":       atomic.LoadUint64(&rejected422),
		"throttled":      atomic.LoadUint64(&throttled429),
		"errors":         atomic.LoadUint64(&failOther),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	file, err := os.Create(fmt.Sprintf("results_%s.json", workload))
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewEncoder(file).Encode(results)
}
