package reporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"tcp-loadgen/internal/models"
)

// Reporter writes send results to a CSV file in a separate goroutine.
type Reporter struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	resultsChan <-chan models.SendResult
	file        *os.File
	outputFile  string
	logger      *slog.Logger
}

// New creates the output file and returns a Reporter ready to Run.
func New(ctx context.Context, wg *sync.WaitGroup, resultsChan <-chan models.SendResult, outputFile string, logger *slog.Logger) (*Reporter, error) {
	file, err := os.Create(outputFile)
	if err != nil {
		return nil, fmt.Errorf("create report file: %w", err)
	}
	return &Reporter{ctx, wg, resultsChan, file, outputFile, logger}, nil
}

// Run listens for results until the channel is closed and writes them to
// the CSV. Results still buffered when ctx is cancelled are drained too.
func (r *Reporter) Run() {
	defer r.wg.Done()
	reporterLogger := r.logger.With(slog.String("component", "reporter"))
	defer r.file.Close()
	writer := csv.NewWriter(r.file)
	defer writer.Flush()

	if err := writer.Write(models.CSVHeader()); err != nil {
		reporterLogger.Error("Failed to write CSV header.", "error", err)
		for range r.resultsChan {
		}
		return
	}
	reporterLogger.Info("Reporter started.", "file", r.outputFile)

	var written int
	for {
		select {
		case result, ok := <-r.resultsChan:
			if !ok {
				reporterLogger.Info("Results channel closed. Shutting down.", "rows", written)
				return
			}
			if err := writer.Write(result.ToCSVRow()); err != nil {
				reporterLogger.Error("Failed to write record.", "error", err)
				continue
			}
			written++
		case <-r.ctx.Done():
			reporterLogger.Info("Shutdown signal received. Draining remaining results...")
			for result := range r.resultsChan { // Drain the channel
				_ = writer.Write(result.ToCSVRow())
				written++
			}
			reporterLogger.Info("Results drained.", "rows", written)
			return
		}
	}
}
