package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nlmatters/semdex/internal/config"
	"github.com/nlmatters/semdex/internal/ingest"
)

// handleDelete implements the delete subcommand
func handleDelete(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    semdex delete <document-id>

DESCRIPTION:
    Remove a document's chunks, vectors and keyword entries.
    Document ids are the paths reported by search results.

EXAMPLES:
    semdex delete notes/old.txt
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: document id is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	documentID := fs.Arg(0)

	ing, err := ingest.NewIngestor(cfg)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer ing.Close()

	if err := ing.DeleteDocument(documentID); err != nil {
		log.Fatalf("Delete failed: %v", err)
	}

	fmt.Printf("Deleted document: %s\n", documentID)
}
