// Package main is the entry point for the sitebuilder CLI.
package main

import (
	"fmt"
	"os"

	"sitebuilder/cmd"
)

// Version information, injected at build time.
var Version = "dev"

func main() {
	rootCmd := cmd.NewRootCmd()
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
