package server

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scenedex/scenedex/internal/models"
)

// QueryLog appends one TSV line per served search. Logging is best-effort:
// failures are logged and swallowed, never surfaced to the request.
type QueryLog struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	file *os.File
}

// NewQueryLog opens (creating if needed) the TSV log at path. An empty path
// disables logging.
func NewQueryLog(path string, logger *zap.Logger) *QueryLog {
	return &QueryLog{path: path, logger: logger}
}

// Append records one search. Tabs and newlines in the query are flattened so
// one line stays one record.
func (l *QueryLog) Append(query string, mode models.SearchMode, resultCount int, clientAddr string) {
	if l == nil || l.path == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			if l.logger != nil {
				l.logger.Warn("query log open failed", zap.Error(err))
			}
			return
		}
		l.file = f
	}
	line := fmt.Sprintf("%s\t%s\t%s\t%d\t%s\n",
		time.Now().UTC().Format(time.RFC3339),
		flatten(query), mode, resultCount, clientAddr)
	if _, err := l.file.WriteString(line); err != nil {
		if l.logger != nil {
			l.logger.Warn("query log write failed", zap.Error(err))
		}
	}
}

// Close closes the underlying file.
func (l *QueryLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}
