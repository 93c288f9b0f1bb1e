package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{name: "Missing size", args: nil, wantCode: 1, wantStderr: "Usage: payloadsum <object_size>"},
		{name: "Not a number", args: []string{"big"}, wantCode: 1, wantStderr: `invalid object_size "big"`},
		{name: "Negative", args: []string{"-3"}, wantCode: 1, wantStderr: `invalid object_size "-3"`},
		{name: "Empty payload", args: []string{"0"}, wantStdout: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855\n"},
		{name: "One KiB", args: []string{"1024"}, wantStdout: "b2256110f2c4226de0008dd4382a388e033f211b617bd3237135ab1d59a722b6\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run("payloadsum", tt.args, &stdout, &stderr); code != tt.wantCode {
				t.Errorf("Exit code %d, want %d", code, tt.wantCode)
			}
			if stdout.String() != tt.wantStdout {
				t.Errorf("stdout: got %q, want %q", stdout.String(), tt.wantStdout)
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr: got %q, want it to contain %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}
