// Package main is the entry point for rulemapper.
//
// rulemapper loads declarative rule files and uses them to convert records
// between maps, CSV and SQL rows, XML documents and fixed-width lines, either
// from the command line or behind an HTTP API.
package main

import (
	"fmt"
	"os"
)

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
