package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sigmatch/sigmatch/catalog"
	"github.com/sigmatch/sigmatch/loader"
	"github.com/sigmatch/sigmatch/match"
)

func main() {
	sigPath := flag.String("sig", "", "path to a catalog DSL file")
	scanPath := flag.String("scan", "", "path to a file to match against the catalog")
	iterations := flag.Int("n", 100, "number of iterations")
	flag.Parse()

	if *sigPath == "" || *scanPath == "" {
		fmt.Fprintf(os.Stderr, "usage: sigbench -sig <catalog.sig> -scan <file> [-n iterations]\n")
		os.Exit(1)
	}

	specs, err := loader.New().ParseFile(*sigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing catalog: %v\n", err)
		os.Exit(1)
	}
	cat, err := catalog.Compile(specs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error compiling catalog: %v\n", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(*scanPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read scan file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("matching %d bytes against %d formats, %d iterations\n\n", len(data), len(cat.Formats()), *iterations)

	withPrefilter, matches := benchMatch(cat, data, *iterations, false, false)
	withoutPrefilter, _ := benchMatch(cat, data, *iterations, true, false)
	instrumented, _ := benchMatch(cat, data, *iterations, false, true)

	fmt.Printf("prefiltered:      %v  (%.2f MB/s)  %d matches\n",
		withPrefilter, mbPerSec(len(data), withPrefilter), matches)
	fmt.Printf("no prefilter:     %v  (%.2f MB/s)\n", withoutPrefilter, mbPerSec(len(data), withoutPrefilter))
	fmt.Printf("instrumented:     %v  (%.2f MB/s)\n", instrumented, mbPerSec(len(data), instrumented))
	fmt.Printf("prefilter ratio:  %.2fx\n", float64(withoutPrefilter)/float64(withPrefilter))
	fmt.Printf("instrument ratio: %.2fx\n", float64(instrumented)/float64(withPrefilter))
}

func benchMatch(cat *catalog.Catalog, data []byte, iterations int, disablePrefilter, instrument bool) (time.Duration, int) {
	m := match.New(cat, instrument)
	m.SetPrefilterDisabled(disablePrefilter)

	// Warm up.
	for i := 0; i < 3; i++ {
		m.Match(data, data)
	}

	var lastCount int
	start := time.Now()
	for i := 0; i < iterations; i++ {
		res := m.Match(data, data)
		lastCount = len(res.Pairs)
	}
	elapsed := time.Since(start)

	return elapsed / time.Duration(iterations), lastCount
}

func mbPerSec(bytes int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(bytes) / d.Seconds() / 1024 / 1024
}
