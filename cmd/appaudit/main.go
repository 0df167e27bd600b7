package main

import (
	"appaudit/internal/cli"
	// Register built-in rules
	_ "appaudit/internal/rules/checks"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.SetBuildInfo(version, commit, date)
	cli.Execute()
}
