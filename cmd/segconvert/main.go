package main

import (
	"os"

	"github.com/Haoran-Jia/LearnSimpleITK/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
