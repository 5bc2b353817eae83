// Command stamon runs the uptime monitor: scheduler, probe workers,
// websocket hub and the HTTP API in one process.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
