package models

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Target is the host:port every send of a run connects to.
type Target struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns the dialable "host:port" form of the target.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	return t.Addr()
}

// SendJob is one object to transmit.
type SendJob struct {
	Seq         int
	PayloadSize int
}

// RunParameters fully determines one run.
type RunParameters struct {
	Target           Target `json:"target"`
	ConcurrencyLimit int    `json:"concurrency_limit"`
	PayloadSize      int    `json:"payload_size"`
	ObjectCount      int    `json:"object_count"`
}

// Sequential reports whether concurrency is disabled for the run.
func (p RunParameters) Sequential() bool {
	return p.ConcurrencyLimit == 0
}

// Validate checks the ranges of every field.
func (p RunParameters) Validate() error {
	if p.Target.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if p.Target.Port < 1 || p.Target.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", p.Target.Port)
	}
	if p.ConcurrencyLimit < 0 {
		return fmt.Errorf("num_threads must not be negative, got %d", p.ConcurrencyLimit)
	}
	if p.PayloadSize < 0 {
		return fmt.Errorf("num_bytes must not be negative, got %d", p.PayloadSize)
	}
	if p.ObjectCount < 0 {
		return fmt.Errorf("num_objects must not be negative, got %d", p.ObjectCount)
	}
	return nil
}

// SendStatus is the outcome of a single send.
type SendStatus string

const (
	StatusOK    SendStatus = "OK"
	StatusError SendStatus = "ERROR"
)

// SendResult holds the outcome of a single send attempt.
type SendResult struct {
	RunID     string
	Seq       int
	Timestamp time.Time
	Target    Target
	Bytes     int
	Status    SendStatus
	Latency   time.Duration
	Error     error
}

// ToCSVRow converts a SendResult into a slice of strings for CSV writing.
func (r *SendResult) ToCSVRow() []string {
	errText := ""
	if r.Error != nil {
		errText = r.Error.Error()
	}
	return []string{
		r.Timestamp.Format(time.RFC3339Nano),
		r.RunID,
		strconv.Itoa(r.Seq),
		r.Target.Addr(),
		strconv.Itoa(r.Bytes),
		string(r.Status),
		fmt.Sprintf("%.2f", r.Latency.Seconds()*1000), // Latency in ms
		errText,
	}
}

// CSVHeader returns the header row for the results CSV file.
func CSVHeader() []string {
	return []string{"timestamp", "run_id", "seq", "target", "bytes", "status", "latency_ms", "error"}
}

// RunStats summarises a run. Attempted counts finished sends only, so while
// sends are still in flight Attempted may be lower than the number started.
type RunStats struct {
	RunID      string
	Started    int64
	Attempted  int64
	Succeeded  int64
	Failed     int64
	Remaining  int64
	PeakActive int64
	Duration   time.Duration
}
