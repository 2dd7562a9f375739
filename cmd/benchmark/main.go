package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/MeKo-Tech/flatscan/internal/benchmark"
	"github.com/MeKo-Tech/flatscan/internal/scan"
)

func main() {
	var (
		iterations = flag.Int("iterations", 5, "Number of iterations per benchmark")
		workers    = flag.Int("workers", 0, "Warp workers (0 = one per CPU)")
		maxSide    = flag.Int("max-side", 0, "Cap the longer output side in pixels (0 = no cap)")
		outputFile = flag.String("output", "", "Write results as JSON to this file (optional)")
		only       = flag.String("run", "", "Run only the named benchmark")
	)
	flag.Parse()

	fmt.Println("flatscan Scan Benchmark")
	fmt.Println("=======================")

	svc, err := scan.NewBuilder().WithWorkers(*workers).WithMaxOutputSide(*maxSide).Build()
	if err != nil {
		log.Fatalf("Failed to build scan service: %v", err)
	}
	suite, err := benchmark.NewScanSuite(svc)
	if err != nil {
		log.Fatalf("Failed to prepare benchmarks: %v", err)
	}

	ctx := context.Background()
	fmt.Printf("Running benchmarks with %d iterations per test...\n\n", *iterations)
	if *only != "" {
		fmt.Println(suite.Run(ctx, *only, *iterations).String())
		return
	}
	suite.RunAll(ctx, *iterations)
	if err := suite.WriteText(os.Stdout); err != nil {
		log.Fatalf("Failed to print results: %v", err)
	}

	if *outputFile != "" {
		f, err := os.Create(*outputFile)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer func() { _ = f.Close() }()
		if err := suite.WriteJSON(f); err != nil {
			log.Fatalf("Failed to write results: %v", err)
		}
		fmt.Printf("\nResults written to: %s\n", *outputFile)
	}
}
