// Package benchmark measures the throughput of the scan operations on the
// synthetic reference photos.
package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/MeKo-Tech/flatscan/internal/codec"
	"github.com/MeKo-Tech/flatscan/internal/common"
	"github.com/MeKo-Tech/flatscan/internal/filter"
	"github.com/MeKo-Tech/flatscan/internal/scan"
	"github.com/MeKo-Tech/flatscan/internal/testutil"
)

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	NumGC           uint32 `json:"num_gc"`
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{AllocBytes: m.Alloc, TotalAllocBytes: m.TotalAlloc, NumGC: m.NumGC}
}

// Result holds the result of a benchmark run.
type Result struct {
	Name       string        `json:"name"`
	Iterations int           `json:"iterations"`
	Total      time.Duration `json:"total_ns"`
	Min        time.Duration `json:"min_ns"`
	Max        time.Duration `json:"max_ns"`
	P95        time.Duration `json:"p95_ns"`
	// AllocPerOp is the average number of bytes allocated per iteration.
	AllocPerOp uint64 `json:"alloc_per_op"`
	Err        string `json:"error,omitempty"`
}

// Avg returns the mean duration of one iteration.
func (r Result) Avg() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Total / time.Duration(r.Iterations)
}

// String returns a formatted string representation of the result.
func (r Result) String() string {
	if r.Err != "" {
		return fmt.Sprintf("%s: ERROR - %s", r.Name, r.Err)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, min: %v, p95: %v, max: %v, alloc/op: %d KB",
		r.Name, r.Iterations, r.Avg(), r.Min, r.P95, r.Max, r.AllocPerOp/1024)
}

// Benchmark is one named operation.
type Benchmark struct {
	Name string
	Func func(ctx context.Context) error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add adds a benchmark to the suite.
func (s *Suite) Add(name string, fn func(ctx context.Context) error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Names lists the registered benchmarks in order.
func (s *Suite) Names() []string {
	names := make([]string, len(s.benchmarks))
	for i, b := range s.benchmarks {
		names[i] = b.Name
	}
	return names
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(ctx context.Context, name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.Name == name {
			return run(ctx, b, iterations)
		}
	}
	return Result{Name: name, Err: fmt.Sprintf("benchmark '%s' not found", name)}
}

// RunAll runs all benchmarks in the suite.
func (s *Suite) RunAll(ctx context.Context, iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, run(ctx, b, iterations))
	}
	return s.results
}

// Results returns the last run results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// WriteText prints the results one per line.
func (s *Suite) WriteText(w io.Writer) error {
	for _, r := range s.Results() {
		if _, err := fmt.Fprintln(w, r.String()); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON writes the results as a JSON array.
func (s *Suite) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s.Results())
}

func run(ctx context.Context, b Benchmark, iterations int) Result {
	res := Result{Name: b.Name}
	if iterations < 1 {
		res.Err = "iterations must be positive"
		return res
	}

	// Force garbage collection before measuring
	runtime.GC()
	before := GetMemoryStats()

	samples := make([]time.Duration, 0, iterations)
	for range iterations {
		timer := common.NewNamedTimer(b.Name)
		err := b.Func(ctx)
		samples = append(samples, timer.Stop())
		if err != nil {
			res.Err = err.Error()
			break
		}
	}
	after := GetMemoryStats()

	slices.Sort(samples)
	res.Iterations = len(samples)
	for _, d := range samples {
		res.Total += d
	}
	res.Min = samples[0]
	res.Max = samples[len(samples)-1]
	res.P95 = samples[(len(samples)*95+99)/100-1]
	res.AllocPerOp = (after.TotalAllocBytes - before.TotalAllocBytes) / uint64(len(samples))
	return res
}

// FilterChains are the filter lists measured by NewScanSuite.
var FilterChains = []string{
	"grayscale",
	"rotate:90",
	"rotate:7.5",
	"enhance:adaptive_bw",
	"enhance:magic_color",
	"enhance:denoise",
}

// NewScanSuite registers a rectify benchmark per reference scenario and a
// filter benchmark per entry of FilterChains, all on svc.
func NewScanSuite(svc *scan.Service) (*Suite, error) {
	suite := NewSuite()

	for _, sc := range testutil.Scenarios() {
		data, err := codec.Encode(sc.Render(), codec.EncodeOptions{Format: codec.PNG})
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", sc.Name, err)
		}
		req := scan.RectifyRequest{Image: data, Corners: sc.Corners}
		suite.Add("rectify_"+sc.Name, func(ctx context.Context) error {
			_, err := svc.RectifyPerspective(ctx, req)
			return err
		})
	}

	page, err := codec.Encode(testutil.DocumentPage(testutil.DefaultPageConfig()), codec.EncodeOptions{Format: codec.PNG})
	if err != nil {
		return nil, err
	}
	for _, chain := range FilterChains {
		specs, err := filter.ParseCompact(chain)
		if err != nil {
			return nil, err
		}
		req := scan.FilterRequest{Image: page, Filters: specs}
		suite.Add("filters_"+chain, func(ctx context.Context) error {
			_, err := svc.ApplyFilters(ctx, req)
			return err
		})
	}
	return suite, nil
}
