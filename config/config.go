package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"tcp-loadgen/internal/models"
)

// ArgumentError reports missing or malformed command-line input. It is fatal:
// nothing is sent when Load returns one.
type ArgumentError struct {
	Msg string
	Err error
}

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Config holds all configuration settings for the sender.
type Config struct {
	models.RunParameters

	Timeout        time.Duration
	RateLimit      int64
	ReportFile     string
	Ping           bool
	PingTimeout    time.Duration
	CheckpointFile string
	ResumeFile     string
	LogLevel       string
	LogFile        string
	Strict         bool
}

// Load parses optional flags followed by the five positional arguments
// <host> <port> <num_threads> <num_bytes> <num_objects>. Usage text and flag
// errors go to stderr.
func Load(prog string, args []string, stderr io.Writer) (*Config, error) {
	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg := &Config{}
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "Per-send dial and write timeout (0 uses the system defaults).")
	fs.Int64Var(&cfg.RateLimit, "rate", 0, "Per-connection write limit in bytes per second (0 is unlimited).")
	fs.StringVar(&cfg.ReportFile, "report", "", "Write a CSV row for every send to this file.")
	fs.BoolVar(&cfg.Ping, "ping", false, "Check the host answers ICMP echo before sending.")
	fs.DurationVar(&cfg.PingTimeout, "ping-timeout", 2*time.Second, "Timeout for the -ping check.")
	fs.StringVar(&cfg.CheckpointFile, "checkpoint", "", "On interrupt, save the unsent remainder of the run to this file.")
	fs.StringVar(&cfg.ResumeFile, "resume", "", "Send only the remainder recorded in this checkpoint file.")
	fs.StringVar(&cfg.LogLevel, "loglevel", "INFO", "Log level: DEBUG, INFO, WARN or ERROR.")
	fs.StringVar(&cfg.LogFile, "logfile", "", "Also append logs to this file.")
	fs.BoolVar(&cfg.Strict, "strict", false, "Exit with status 2 if any send failed.")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] <host> <port> <num_threads> <num_bytes> <num_objects>\n", prog)
		fmt.Fprintln(stderr, "\t<num_threads> - number of concurrent senders")
		fmt.Fprintln(stderr, "\t\tnum_threads set to 0 disables parallelism")
		fmt.Fprintln(stderr, "\t<num_bytes> - number of bytes to send")
		fmt.Fprintln(stderr, "\t<num_objects> - number of objects to send")
		fmt.Fprintln(stderr, "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, &ArgumentError{Msg: "invalid flags", Err: err}
	}

	pos := fs.Args()
	if len(pos) < 5 {
		fs.Usage()
		return nil, &ArgumentError{Msg: fmt.Sprintf("expected 5 arguments, got %d", len(pos))}
	}

	ints := make([]int, 4)
	for i, name := range []string{"port", "num_threads", "num_bytes", "num_objects"} {
		v, err := strconv.Atoi(pos[i+1])
		if err != nil {
			return nil, &ArgumentError{Msg: fmt.Sprintf("invalid %s %q", name, pos[i+1]), Err: errors.Unwrap(err)}
		}
		ints[i] = v
	}

	cfg.RunParameters = models.RunParameters{
		Target:           models.Target{Host: pos[0], Port: ints[0]},
		ConcurrencyLimit: ints[1],
		PayloadSize:      ints[2],
		ObjectCount:      ints[3],
	}
	if err := cfg.RunParameters.Validate(); err != nil {
		return nil, &ArgumentError{Msg: "invalid arguments", Err: err}
	}
	if cfg.Timeout < 0 {
		return nil, &ArgumentError{Msg: "-timeout must not be negative"}
	}
	if cfg.RateLimit < 0 {
		return nil, &ArgumentError{Msg: "-rate must not be negative"}
	}

	return cfg, nil
}
