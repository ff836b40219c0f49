// Command ledgerctl runs one-off ledger operations from the shell.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"finmate/internal/cli"

	"github.com/google/subcommands"
)

func main() {
	cli.LoadEnvFile()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands(os.Stdout) {
		commander.Register(c, "ledger")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
