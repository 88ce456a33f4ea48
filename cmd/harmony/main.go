package main

import (
	"fmt"
	"os"

	"github.com/geniusharmony/harmony/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "harmony:", err)
		os.Exit(1)
	}
}
