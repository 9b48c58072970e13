// Package main is the single-binary entrypoint for Tempo.
package main

import "github.com/tempohq/tempo/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
