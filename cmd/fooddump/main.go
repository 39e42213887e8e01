// fooddump downloads the full government nutrition database and
// writes it as a dump file the engine's importer can load. The
// service key is read from the KFDA_SERVICE_KEY environment variable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bodii/foodsearch/internal/importer"
	"github.com/bodii/foodsearch/internal/remote"
	"github.com/bodii/foodsearch/internal/storage"
	"github.com/bodii/foodsearch/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const pageRows = 1000

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	outPath := flag.String("out", "kfda_foods.json", "output dump file")
	maxPages := flag.Int("max-pages", 0, "stop after this many pages (0 = all)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fooddump\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	serviceKey := os.Getenv("KFDA_SERVICE_KEY")
	client, err := remote.NewKFDAClient(serviceKey)
	if err != nil {
		log.Fatalf("Failed to create KFDA client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, stopping after current page...", sig)
		cancel()
	}()

	startTime := time.Now()
	var foods []types.FoodItem
	for page := 1; ; page++ {
		items, total, err := client.FetchPage(ctx, page, pageRows)
		if err != nil {
			log.Fatalf("Failed to fetch page %d: %v", page, err)
		}
		if len(items) == 0 {
			break
		}
		foods = append(foods, items...)
		log.Printf("Fetched page %d: %d foods (%d/%d total)", page, len(items), len(foods), total)

		if *maxPages > 0 && page >= *maxPages {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	file, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer func() { _ = file.Close() }()

	if err := importer.WriteDump(file, foods); err != nil {
		log.Fatalf("Failed to write dump: %v", err)
	}

	log.Printf("Wrote %d foods to %s in %s", len(foods), *outPath, time.Since(startTime).Round(time.Millisecond))
}
