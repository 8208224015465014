// Package main provides the entry point for the websmith server.
package main

import (
	"fmt"
	"os"

	"github.com/websmith-ai/websmith/cmd/websmith-server/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
