// Command specindex loads spectrum files through pkg/loader, prints a
// per-file summary banner, and optionally stores each result via
// pkg/specindex.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"specfile/pkg/loader"
	"specfile/pkg/specindex"
)

func main() {
	driver := flag.String("driver", "sqlite", "index store driver: pgx, duckdb, or sqlite")
	dsn := flag.String("dsn", "specindex.sqlite", "data source name for -driver")
	op := flag.String("op", "scan", "operation: scan, list, or show")
	index := flag.Bool("index", false, "also store each scanned file's record (scan)")
	format := flag.String("format", "", "format filter (list)")
	id := flag.Int64("id", 0, "record id (show)")
	flag.Parse()

	ctx := context.Background()
	store, err := specindex.Open(ctx, *driver, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "specindex: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	banner := isatty.IsTerminal(os.Stdout.Fd())

	switch *op {
	case "scan":
		runScan(ctx, store, flag.Args(), *index, banner)
	case "list":
		runList(ctx, store, *format)
	case "show":
		runShow(ctx, store, *id)
	default:
		fmt.Fprintf(os.Stderr, "specindex: unknown -op %q\n", *op)
		os.Exit(1)
	}
}

// runScan walks paths, loads each through pkg/loader, prints a summary for
// every file, and (when index is set) stores the result via pkg/specindex.
func runScan(ctx context.Context, store *specindex.Store, paths []string, index, banner bool) {
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "specindex: no paths given; usage: specindex [flags] file...")
		os.Exit(1)
	}

	loaded, failed := 0, 0
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "specindex: read %s: %v\n", path, err)
			failed++
			continue
		}

		res, err := loader.Load(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "specindex: %s: %v\n", path, err)
			failed++
			continue
		}
		loaded++

		if banner {
			fmt.Printf("=== %s ===\n", path)
		} else {
			fmt.Printf("%s:\n", path)
		}
		fmt.Printf("  format:        %s\n", res.Format)
		fmt.Printf("  instrument:    %s %s (%s)\n", res.File.InstrumentManufacturer, res.File.InstrumentModel, res.File.InstrumentID)
		fmt.Printf("  measurements:  %d\n", len(res.File.Measurements))
		fmt.Printf("  detectors:     %v\n", res.File.DetectorNames())
		fmt.Printf("  passthrough:   %t\n", res.File.Passthrough)
		fmt.Printf("  neutron:       %t\n", res.File.AnyNeutron)
		fmt.Printf("  size:          %s\n", humanize.Bytes(uint64(len(raw))))
		if n := len(res.File.ParseWarnings); n > 0 {
			fmt.Printf("  warnings:      %d\n", n)
			for _, w := range res.File.ParseWarnings {
				fmt.Printf("    - %s\n", w)
			}
		}

		if index {
			rec := specindex.FromFile(path, res.Format, res.File, raw)
			idAssigned, err := store.Insert(ctx, rec)
			if err != nil {
				fmt.Fprintf(os.Stderr, "specindex: insert %s: %v\n", path, err)
				continue
			}
			fmt.Printf("  indexed:       id=%d\n", idAssigned)
		}
	}

	fmt.Printf("\n%d loaded, %d failed\n", loaded, failed)
}

func runList(ctx context.Context, store *specindex.Store, format string) {
	if format == "" {
		fmt.Fprintln(os.Stderr, "specindex: -format is required for -op=list")
		os.Exit(1)
	}
	recs, err := store.ListByFormat(ctx, format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "specindex: list %s: %v\n", format, err)
		os.Exit(1)
	}
	fmt.Printf("%d record(s) for format %q:\n", len(recs), format)
	for _, r := range recs {
		fmt.Printf("  [%d] %-24s  measurements=%-4d  detectors=%v\n", r.ID, r.Filename, r.MeasurementCount, r.DetectorNames)
	}
}

func runShow(ctx context.Context, store *specindex.Store, id int64) {
	if id == 0 {
		fmt.Fprintln(os.Stderr, "specindex: -id is required for -op=show")
		os.Exit(1)
	}
	rec, err := store.Get(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "specindex: get %d: %v\n", id, err)
		os.Exit(1)
	}
	fmt.Printf("id:            %d\n", rec.ID)
	fmt.Printf("filename:      %s\n", rec.Filename)
	fmt.Printf("format:        %s\n", rec.Format)
	fmt.Printf("instrument:    %s %s (%s)\n", rec.InstrumentManufacturer, rec.InstrumentModel, rec.InstrumentID)
	fmt.Printf("uuid:          %s\n", rec.UUID)
	fmt.Printf("measurements:  %d\n", rec.MeasurementCount)
	fmt.Printf("detectors:     %v\n", rec.DetectorNames)
	fmt.Printf("warnings:      %d\n", rec.ParseWarningCount)
	fmt.Printf("raw size:      %s\n", humanize.Bytes(uint64(len(rec.RawData))))
}
