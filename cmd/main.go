// Package main provides the entry point for the trainloop CLI.
package main

import "github.com/trainloop/trainloop/cmd/cli"

func main() {
	cli.Execute()
}
