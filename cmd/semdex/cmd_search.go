package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/nlmatters/semdex/cmd/semdex/internal"
	"github.com/nlmatters/semdex/internal/config"
	"github.com/nlmatters/semdex/internal/ingest"
	"github.com/nlmatters/semdex/internal/search"
)

// handleSearch implements the search subcommand
func handleSearch(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)

	var topK int
	var jsonOutput, verbose bool
	var filters internal.StringList

	fs.IntVar(&topK, "k", cfg.Search.DefaultTopK, "Number of results to return")
	fs.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	fs.BoolVar(&verbose, "v", false, "Verbose output (show component scores)")
	fs.Var(&filters, "filter", "Metadata filter as key=value (repeatable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    semdex search [options] "<query>"

DESCRIPTION:
    Hybrid search over the ingested corpus, fusing vector similarity
    with keyword relevance. With -filter and no query, lists matching
    chunks without any relevance ranking.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Natural language search
    semdex search "how are invoices retried"

    # Top 20 results
    semdex search "rate limiting" -k 20

    # Restrict to one document
    semdex search "setup steps" -filter document_id=README.md

    # Filter-only listing, no query
    semdex search -filter ext=.md

    # JSON output for scripting
    semdex search "error handling" -json
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	query := ""
	if fs.NArg() > 0 {
		query = fs.Arg(0)
	}

	filterMap := make(map[string]string, len(filters))
	for _, f := range filters {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			log.Fatalf("Invalid filter %q, expected key=value", f)
		}
		filterMap[key] = value
	}

	if query == "" && len(filterMap) == 0 {
		fmt.Fprintf(os.Stderr, "Error: a query or at least one -filter is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	ing, err := ingest.NewIngestor(cfg)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer ing.Close()

	vectors, chunks := ing.Stores()
	engine := search.NewEngine(vectors, chunks, ing.KeywordIndex(), ing.Embedder(),
		cfg.Search.Collection, cfg.Search.RRFConstant)

	opts := search.DefaultOptions()
	opts.TopK = topK
	opts.Filters = filterMap

	stop := ingest.StartSpinner(!jsonOutput && ingest.DefaultProgressEnabled(), "searching")
	results, err := engine.Search(context.Background(), query, opts)
	stop()
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	if jsonOutput {
		outputJSON(results, query)
	} else {
		outputText(results, query, verbose)
	}
}

// outputText prints search results as human-readable text
func outputText(results []search.Result, query string, verbose bool) {
	if len(results) == 0 {
		fmt.Println("No results found")
		return
	}

	if query != "" {
		fmt.Printf("Found %d result(s) for: %s\n\n", len(results), query)
	} else {
		fmt.Printf("Found %d matching chunk(s)\n\n", len(results))
	}

	for i, result := range results {
		fmt.Printf("%d. %s\n", i+1, result.ID)
		if doc := result.Payload["document_id"]; doc != "" {
			fmt.Printf("   Document: %s\n", doc)
		}

		if verbose {
			if result.VectorScore > 0 {
				fmt.Printf("   Vector:  %.3f\n", result.VectorScore)
			}
			if result.KeywordScore > 0 {
				fmt.Printf("   Keyword: %.3f\n", result.KeywordScore)
			}
			fmt.Printf("   Score:   %.4f\n", result.CombinedScore)
		}

		if result.Chunk != nil {
			text := result.Chunk.Text
			if runes := []rune(text); len(runes) > 160 {
				text = string(runes[:160]) + "..."
			}
			fmt.Printf("   %s\n", text)
		}

		fmt.Println()
	}
}

// outputJSON prints search results as JSON
func outputJSON(results []search.Result, query string) {
	output := map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	}

	jsonData, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal results: %v", err)
	}

	fmt.Println(string(jsonData))
}
