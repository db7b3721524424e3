package main

import (
	"os"

	"github.com/comanda-pos/api/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
