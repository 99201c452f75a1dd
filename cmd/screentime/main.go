package main

import (
	"os"

	"github.com/dovakin0007/screen-time-tracking-app/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
