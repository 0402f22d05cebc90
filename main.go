package main

import (
	"os"

	"github.com/hausmatch/leadflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
