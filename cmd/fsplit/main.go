// Package main implements the fsplit CLI.
// It analyzes the data flow of a Python method body and splits it into
// independently callable segments.
package main

import (
	"os"

	"github.com/l3aro/go-forward-split/cmd/fsplit/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Version = version
	commands.RootCmd.SetVersionTemplate(`fsplit version {{.Version}}
`)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
