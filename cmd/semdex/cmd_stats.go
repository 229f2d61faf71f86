package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nlmatters/semdex/internal/config"
	"github.com/nlmatters/semdex/internal/ingest"
)

// handleStats implements the stats subcommand
func handleStats(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var jsonOutput bool
	fs.BoolVar(&jsonOutput, "json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    semdex stats [options]

DESCRIPTION:
    Show statistics about the current index.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Show human-readable statistics
    semdex stats

    # JSON output
    semdex stats -json
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	ing, err := ingest.NewIngestor(cfg)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer ing.Close()

	stats, err := ing.DB().Stats()
	if err != nil {
		log.Fatalf("Failed to read statistics: %v", err)
	}
	keywordCount, _ := ing.KeywordIndex().Count()

	if jsonOutput {
		out := map[string]interface{}{
			"collections":    stats.CollectionCount,
			"documents":      stats.DocumentCount,
			"chunks":         stats.ChunkCount,
			"vectors":        stats.VectorCount,
			"cached_vectors": stats.CachedVectorCount,
			"keyword_docs":   keywordCount,
			"size_bytes":     stats.SizeBytes,
		}
		jsonData, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		fmt.Println("Index Statistics")
		fmt.Println()
		fmt.Printf("Collections: %6d\n", stats.CollectionCount)
		fmt.Printf("Documents:   %6d\n", stats.DocumentCount)
		fmt.Printf("Chunks:      %6d\n", stats.ChunkCount)
		fmt.Printf("Vectors:     %6d\n", stats.VectorCount)
		fmt.Printf("Cached:      %6d\n", stats.CachedVectorCount)
		fmt.Printf("Keyword:     %6d\n", keywordCount)
		fmt.Printf("DB size:     %6d bytes\n", stats.SizeBytes)
	}
}
