package internal

import (
	"fmt"
	"os"
	"strings"
)

const Version = "0.3.1"

// PrintUsage writes the top-level usage text to stderr.
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `semdex - Semantic Document Search

Version: %s

USAGE:
    semdex [global options] <command> [command options]

GLOBAL OPTIONS:
    -config <path>
        Path to config file (default: ~/.semdex/config/semdex.yaml)

    -root <path>
        Document corpus root directory (default: current directory)

    -v, -version
        Show version information

    -h, -help
        Show this help message

COMMANDS:
    ingest
        Chunk, embed and index documents under the corpus root

    search
        Hybrid search over the ingested corpus

    delete
        Remove a document from all indexes

    stats
        Show index statistics

EXAMPLES:
    # Ingest the current directory
    semdex ingest

    # Ingest a specific corpus
    semdex -root /path/to/docs ingest

    # Search with natural language
    semdex search "how does billing retry work"

    # Filter by metadata only, no query
    semdex search -filter ext=.md

    # Remove one document
    semdex delete notes/old.txt

    # Show statistics
    semdex stats

For detailed help on each command, use:
    semdex <command> -help
`, Version)
}

// StringList is a flag.Value that collects repeated string flags.
type StringList []string

func (s *StringList) String() string {
	return strings.Join(*s, ",")
}

func (s *StringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}
