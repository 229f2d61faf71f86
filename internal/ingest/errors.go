package ingest

import (
	"fmt"
	"strings"
	"sync"
)

// IngestWarning reports per-document failures from a run that otherwise
// completed. The run result still counts the documents that succeeded.
type IngestWarning struct {
	Count   int
	Samples []string
}

func (w *IngestWarning) Error() string {
	if w == nil {
		return ""
	}
	if len(w.Samples) > 0 {
		return fmt.Sprintf("ingest completed with %d errors: %s", w.Count, strings.Join(w.Samples, "; "))
	}
	return fmt.Sprintf("ingest completed with %d errors", w.Count)
}

type errorCollector struct {
	mu      sync.Mutex
	count   int
	samples []string
}

func newErrorCollector() *errorCollector {
	return &errorCollector{}
}

func (c *errorCollector) Add(path string, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	if len(c.samples) < 5 {
		c.samples = append(c.samples, fmt.Sprintf("%s: %v", path, err))
	}
}

func (c *errorCollector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == 0 {
		return nil
	}
	return &IngestWarning{Count: c.count, Samples: c.samples}
}
