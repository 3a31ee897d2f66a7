package main

import (
	"os"

	"github.com/conciliar-dev/conciliar/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
