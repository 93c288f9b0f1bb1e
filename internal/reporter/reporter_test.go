package reporter

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"tcp-loadgen/internal/models"
	"tcp-loadgen/internal/testutils"
)

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open output file: %v", err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV records: %v", err)
	}
	return records
}

func TestReporter_Run(t *testing.T) {
	logger, logBuf := testutils.SetupTestLogger()
	outputFile := filepath.Join(t.TempDir(), "results.csv")

	resultsChan := make(chan models.SendResult, 3)
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reporter, err := New(ctx, &wg, resultsChan, outputFile, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wg.Add(1)
	go reporter.Run()

	now := time.Now()
	target := models.Target{Host: "127.0.0.1", Port: 8080}
	resultsToSend := []models.SendResult{
		{RunID: "r1", Seq: 1, Timestamp: now, Target: target, Bytes: 1024, Status: models.StatusOK, Latency: 2 * time.Millisecond},
		{RunID: "r1", Seq: 2, Timestamp: now, Target: target, Bytes: 1024, Status: models.StatusOK, Latency: 3 * time.Millisecond},
		{RunID: "r1", Seq: 3, Timestamp: now, Target: target, Bytes: 0, Status: models.StatusError, Error: errors.New("dial 127.0.0.1:8080: connection refused")},
	}
	for _, res := range resultsToSend {
		resultsChan <- res
	}
	close(resultsChan)
	wg.Wait()

	records := readRecords(t, outputFile)
	if len(records) != len(resultsToSend)+1 { // +1 for header
		t.Fatalf("Expected %d records, got %d", len(resultsToSend)+1, len(records))
	}
	header := models.CSVHeader()
	for i := range header {
		if records[0][i] != header[i] {
			t.Errorf("Expected header %v, got %v", header, records[0])
			break
		}
	}
	for i, res := range resultsToSend {
		row := records[i+1]
		if row[1] != res.RunID || row[2] != strconv.Itoa(res.Seq) || row[3] != "127.0.0.1:8080" || row[5] != string(res.Status) {
			t.Errorf("Record mismatch for result %d: got %v", i, row)
		}
	}
	if records[3][7] != "dial 127.0.0.1:8080: connection refused" {
		t.Errorf("Expected the error text in the last column, got %q", records[3][7])
	}

	if !strings.Contains(logBuf.String(), "Reporter started.") {
		t.Errorf("Expected log message 'Reporter started.' not found. Logs:\n%s", logBuf.String())
	}
	if !strings.Contains(logBuf.String(), "Results channel closed. Shutting down.") {
		t.Errorf("Expected log message 'Results channel closed. Shutting down.' not found. Logs:\n%s", logBuf.String())
	}
}

func TestReporter_Run_ContextCancelDrains(t *testing.T) {
	logger, _ := testutils.SetupTestLogger()
	outputFile := filepath.Join(t.TempDir(), "results.csv")

	resultsChan := make(chan models.SendResult, 4)
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	reporter, err := New(ctx, &wg, resultsChan, outputFile, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cancel()
	for seq := 1; seq <= 4; seq++ {
		resultsChan <- models.SendResult{Seq: seq, Status: models.StatusOK}
	}
	close(resultsChan)

	wg.Add(1)
	reporter.Run()

	if records := readRecords(t, outputFile); len(records) != 5 {
		t.Errorf("Expected header plus 4 rows, got %d records", len(records))
	}
}

func TestNew_BadPath(t *testing.T) {
	logger, _ := testutils.SetupTestLogger()
	var wg sync.WaitGroup
	_, err := New(context.Background(), &wg, nil, filepath.Join(t.TempDir(), "missing", "out.csv"), logger)
	if err == nil {
		t.Error("Expected an error for an uncreatable report path")
	}
}
