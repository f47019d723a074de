package main

import (
	"github.com/nodestash/nodestash/cmd"
)

// set by goreleaser
var version string

func main() {
	if version != "" {
		cmd.Version = version
	}
	cmd.Execute()
}
