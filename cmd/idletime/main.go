// Package main is the entrypoint of the idletime command.
package main

import "github.com/MatthiasKunnen/idletime/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
