package main

import (
	"os"

	"bons/cmd/bons/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
