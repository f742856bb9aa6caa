package main

import (
	"os"

	"github.com/repodash/repodash/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
