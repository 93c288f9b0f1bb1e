// Command payloadsum prints the SHA256 digest of the synthetic payload of a
// given size, so a receiver can check what it got from tcp-loadgen.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"tcp-loadgen/internal/payload"
)

func main() {
	os.Exit(run(filepath.Base(os.Args[0]), os.Args[1:], os.Stdout, os.Stderr))
}

func run(prog string, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintf(stderr, "Usage: %s <object_size>\n", prog)
		return 1
	}
	size, err := strconv.Atoi(args[0])
	if err != nil || size < 0 {
		fmt.Fprintf(stderr, "ERROR: invalid object_size %q\n", args[0])
		return 1
	}
	fmt.Fprintln(stdout, payload.Digest(size))
	return 0
}
