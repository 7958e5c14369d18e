package main

import (
	"fmt"
	"os"

	"github.com/autopeer-io/robopeer/cmd/robopeerctl/app"
)

func main() {
	if err := app.NewRobopeerctlCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
