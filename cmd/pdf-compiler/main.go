package main

import (
	"fmt"
	"os"

	"github.com/spherical/pdf-compiler/cmd/pdf-compiler/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		if !commands.Reported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(commands.ExitCode(err))
	}
}
