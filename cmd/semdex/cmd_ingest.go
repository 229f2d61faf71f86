package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nlmatters/semdex/internal/config"
	"github.com/nlmatters/semdex/internal/ingest"
)

// handleIngest implements the ingest subcommand
func handleIngest(cfg *config.Config, root string, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	noProgress := fs.Bool("no-progress", false, "Disable the progress bar")
	verbose := fs.Bool("v", false, "Verbose output")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    semdex ingest [options]

DESCRIPTION:
    Ingest the documents under the corpus root.
    This will:
      1. Clean and normalize each document
      2. Split text into chunks (sentence, paragraph, fixed or semantic)
      3. Drop near-duplicate chunks
      4. Embed chunks through the configured provider, cache-first
      5. Store vectors and update the keyword index

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Ingest current directory
    semdex ingest

    # Ingest a specific corpus
    semdex -root /path/to/docs ingest

    # Quiet run without the progress bar
    semdex ingest -no-progress
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if _, err := os.Stat(root); os.IsNotExist(err) {
		log.Fatalf("Corpus root does not exist: %s", root)
	}

	if *verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	fmt.Printf("Ingesting corpus: %s\n\n", root)

	ing, err := ingest.NewIngestor(cfg)
	if err != nil {
		log.Fatalf("Failed to create ingestor: %v", err)
	}
	defer ing.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter := ingest.NewIngestProgress(!*noProgress && ingest.DefaultProgressEnabled())

	result, err := ing.IngestDirectory(ctx, root, reporter)
	if err != nil {
		var warning *ingest.IngestWarning
		if errors.As(err, &warning) {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", warning)
		} else {
			log.Fatalf("Ingest failed: %v", err)
		}
	}

	fmt.Println()
	fmt.Println("Ingest completed.")
	fmt.Printf("\nDuration: %v\n", result.Duration.Round(time.Millisecond))
	fmt.Println("\nStatistics:")
	fmt.Printf("   Documents: %6d\n", result.Documents)
	fmt.Printf("   Chunks:    %6d\n", result.Chunks)

	if stats, err := ing.DB().Stats(); err == nil {
		fmt.Printf("   Vectors:   %6d\n", stats.VectorCount)
		fmt.Printf("   Cached:    %6d\n", stats.CachedVectorCount)
	}
}
