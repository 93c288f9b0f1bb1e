package config

import (
	"bytes"
	"errors"
	"flag"
	"strconv"
	"strings"
	"testing"
	"time"

	"tcp-loadgen/internal/models"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expectError bool
		errorMsg    string
		wantUsage   bool
		expectedCfg *Config // Only check specific fields that are relevant to the test
	}{
		{
			name:        "No arguments",
			args:        []string{},
			expectError: true,
			errorMsg:    "expected 5 arguments, got 0",
			wantUsage:   true,
		},
		{
			name:        "Three arguments",
			args:        []string{"127.0.0.1", "8080", "4"},
			expectError: true,
			errorMsg:    "expected 5 arguments, got 3",
			wantUsage:   true,
		},
		{
			name:        "Non-integer port",
			args:        []string{"127.0.0.1", "http", "4", "1024", "10"},
			expectError: true,
			errorMsg:    `invalid port "http"`,
		},
		{
			name:        "Non-integer thread count",
			args:        []string{"127.0.0.1", "8080", "four", "1024", "10"},
			expectError: true,
			errorMsg:    `invalid num_threads "four"`,
		},
		{
			name:        "Non-integer byte count",
			args:        []string{"127.0.0.1", "8080", "4", "1k", "10"},
			expectError: true,
			errorMsg:    `invalid num_bytes "1k"`,
		},
		{
			name:        "Non-integer object count",
			args:        []string{"127.0.0.1", "8080", "4", "1024", "ten"},
			expectError: true,
			errorMsg:    `invalid num_objects "ten"`,
		},
		{
			name:        "Port out of range",
			args:        []string{"127.0.0.1", "70000", "4", "1024", "10"},
			expectError: true,
			errorMsg:    "port 70000 out of range",
		},
		{
			name:        "Negative thread count",
			args:        []string{"127.0.0.1", "8080", "-1", "1024", "10"},
			expectError: true,
			errorMsg:    "num_threads must not be negative",
		},
		{
			name:        "Unknown flag",
			args:        []string{"-bogus", "127.0.0.1", "8080", "4", "1024", "10"},
			expectError: true,
			errorMsg:    "invalid flags",
		},
		{
			name: "Default Values",
			args: []string{"127.0.0.1", "8080", "4", "1024", "10"},
			expectedCfg: &Config{
				RunParameters: models.RunParameters{
					Target:           models.Target{Host: "127.0.0.1", Port: 8080},
					ConcurrencyLimit: 4,
					PayloadSize:      1024,
					ObjectCount:      10,
				},
				PingTimeout: 2 * time.Second,
				LogLevel:    "INFO",
			},
		},
		{
			name: "Sequential mode",
			args: []string{"localhost", "9000", "0", "0", "0"},
			expectedCfg: &Config{
				RunParameters: models.RunParameters{
					Target: models.Target{Host: "localhost", Port: 9000},
				},
				PingTimeout: 2 * time.Second,
				LogLevel:    "INFO",
			},
		},
		{
			name: "Custom Values",
			args: []string{
				"-timeout=500ms",
				"-rate=65536",
				"-report=out.csv",
				"-ping",
				"-ping-timeout=1s",
				"-checkpoint=cp.json",
				"-resume=old.json",
				"-loglevel=DEBUG",
				"-logfile=run.log",
				"-strict",
				"10.0.0.5", "443", "16", "4096", "1000",
			},
			expectedCfg: &Config{
				RunParameters: models.RunParameters{
					Target:           models.Target{Host: "10.0.0.5", Port: 443},
					ConcurrencyLimit: 16,
					PayloadSize:      4096,
					ObjectCount:      1000,
				},
				Timeout:        500 * time.Millisecond,
				RateLimit:      65536,
				ReportFile:     "out.csv",
				Ping:           true,
				PingTimeout:    time.Second,
				CheckpointFile: "cp.json",
				ResumeFile:     "old.json",
				LogLevel:       "DEBUG",
				LogFile:        "run.log",
				Strict:         true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			cfg, err := Load("tcp-loadgen", tt.args, &stderr)

			if tt.expectError {
				if err == nil {
					t.Fatalf("Expected error but got nil")
				}
				var argErr *ArgumentError
				if !errors.As(err, &argErr) {
					t.Errorf("Expected *ArgumentError, got %T", err)
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error message to contain '%s', but got '%s'", tt.errorMsg, err.Error())
				}
				if tt.wantUsage && !strings.Contains(stderr.String(), "Usage: tcp-loadgen") {
					t.Errorf("Expected usage text on stderr, got: %s", stderr.String())
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error, but got: %v", err)
			}
			if *cfg != *tt.expectedCfg {
				t.Errorf("Config mismatch:\n got  %+v\n want %+v", *cfg, *tt.expectedCfg)
			}
		})
	}
}

func TestLoad_ParseErrorKeepsCause(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Load("tcp-loadgen", []string{"h", "x", "1", "1", "1"}, &stderr)
	if !errors.Is(err, strconv.ErrSyntax) {
		t.Errorf("Expected strconv.ErrSyntax in the chain, got %v", err)
	}
}

func TestLoad_Help(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Load("tcp-loadgen", []string{"-h"}, &stderr)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("Expected flag.ErrHelp, got %v", err)
	}
	if !strings.Contains(stderr.String(), "num_threads set to 0 disables parallelism") {
		t.Errorf("Expected usage text, got: %s", stderr.String())
	}
}
