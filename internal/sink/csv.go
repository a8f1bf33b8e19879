// Package sink holds write-only consumers of the price feed. Nothing here is
// ever read back by the core.
package sink

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"arbtrack/internal/model"
)

var csvHeader = []string{"exchange", "currency", "cryptocurrency", "timestamp", "price"}

// CSVSink appends every observed price to a daily CSV file named
// data_YYYY-MM-DD.csv.
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	logger *slog.Logger
}

// NewCSVSink creates today's CSV file under dir, writing the header row.
func NewCSVSink(dir string, logger *slog.Logger) (*CSVSink, error) {
	path := filepath.Join(dir, fmt.Sprintf("data_%s.csv", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}

	writer := csv.NewWriter(file)
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() == 0 {
		if err := writer.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		writer.Flush()
	}

	return &CSVSink{file: file, writer: writer, logger: logger}, nil
}

// Observe appends one price row. Implements the tracker's PriceHook contract;
// write failures are logged and dropped.
func (s *CSVSink) Observe(key model.PriceKey, point model.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := []string{
		key.Exchange,
		key.Fiat,
		key.Crypto,
		point.ObservedAt.Format(time.RFC3339),
		point.Price.String(),
	}
	if err := s.writer.Write(row); err != nil {
		s.logger.Warn("failed to write csv row", "error", err)
		return
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.logger.Warn("failed to flush csv", "error", err)
	}
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Flush()
	return s.file.Close()
}
