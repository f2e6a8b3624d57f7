// Simulates contended booking traffic against a running API instance.
// Workers fight over a small pool of slots so the conflict path and the
// single-winner guarantee get exercised under real concurrency.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"slothold/internal/models"
)

type simConfig struct {
	baseURL  string
	apiKey   string
	workers  int
	duration time.Duration
	slots    int
}

type counters struct {
	total    atomic.Int64
	success  atomic.Int64
	conflict atomic.Int64
	invalid  atomic.Int64
	errors   atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (c *counters) record(latency time.Duration) {
	c.mu.Lock()
	c.latencies = append(c.latencies, latency)
	c.mu.Unlock()
}

func (c *counters) percentile(p int) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(c.latencies))
	copy(sorted, c.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func main() {
	cfg := simConfig{}
	flag.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "API base URL")
	flag.StringVar(&cfg.apiKey, "api-key", "", "API key (when auth is enabled)")
	flag.IntVar(&cfg.workers, "workers", 20, "concurrent workers")
	flag.DurationVar(&cfg.duration, "duration", 30*time.Second, "run duration")
	flag.IntVar(&cfg.slots, "slots", 10, "size of the contended slot pool")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("simulate starting: workers=%d duration=%s slots=%d", cfg.workers, cfg.duration, cfg.slots)

	gofakeit.Seed(time.Now().UnixNano())

	slots := makeSlotPool(cfg.slots)
	services := models.ServiceTypes()

	var c counters
	deadline := time.Now().Add(cfg.duration)
	client := &http.Client{Timeout: 5 * time.Second}

	var wg sync.WaitGroup
	for i := 0; i < cfg.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				req := models.ReservationRequest{
					Datetime:          slots[rand.Intn(len(slots))],
					ServiceType:       services[rand.Intn(len(services))],
					CustomerEmail:     gofakeit.Email(),
					EstimatedDuration: 15 * (1 + rand.Intn(12)),
				}
				reserve(client, &cfg, &c, &req)
			}
		}()
	}
	wg.Wait()

	fmt.Printf("\ntotal=%d success=%d conflict=%d invalid=%d errors=%d\n",
		c.total.Load(), c.success.Load(), c.conflict.Load(), c.invalid.Load(), c.errors.Load())
	fmt.Printf("latency p50=%s p95=%s p99=%s\n", c.percentile(50), c.percentile(95), c.percentile(99))
}

func makeSlotPool(n int) []time.Time {
	base := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	slots := make([]time.Time, n)
	for i := range slots {
		slots[i] = base.Add(time.Duration(i) * 30 * time.Minute)
	}
	return slots
}

func reserve(client *http.Client, cfg *simConfig, c *counters, req *models.ReservationRequest) {
	body, err := json.Marshal(req)
	if err != nil {
		c.errors.Add(1)
		return
	}

	httpReq, err := http.NewRequest(http.MethodPost, cfg.baseURL+"/api/v1/reservations", bytes.NewReader(body))
	if err != nil {
		c.errors.Add(1)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if cfg.apiKey != "" {
		httpReq.Header.Set("x-api-key", cfg.apiKey)
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	c.total.Add(1)
	if err != nil {
		c.errors.Add(1)
		return
	}
	defer resp.Body.Close()
	c.record(time.Since(start))

	if resp.StatusCode == http.StatusBadRequest {
		c.invalid.Add(1)
		return
	}
	if resp.StatusCode != http.StatusOK {
		c.errors.Add(1)
		return
	}

	var result models.ReservationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.errors.Add(1)
		return
	}
	switch {
	case result.Success:
		c.success.Add(1)
	case result.ConflictingReservation != "":
		c.conflict.Add(1)
	default:
		c.conflict.Add(1)
	}
}
