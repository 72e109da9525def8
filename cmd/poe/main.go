// Package main provides the poe CLI.
package main

import "github.com/mesh-intelligence/poe/internal/cli"

func main() {
	cli.Execute()
}
