package main

import (
	"os"

	"github.com/asagiri-dev/choukan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
