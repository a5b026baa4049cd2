package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atomik-dev/atomik/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "atomik",
		Short: "Reactive state graphs for Go",
		Long: `Atomik is a reactive state container for Go.

Declare mutable sources and derived values over them; when a source
changes, every affected derived value recomputes exactly once, in
dependency order, before subscribers hear about any of it.

This CLI ships interactive demos and a debug server for poking at
a live graph.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		demoCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		var ae *errors.AtomikError
		if !stderrors.As(err, &ae) {
			ae = errors.New("E120").Wrap(err)
		}
		fmt.Fprintln(os.Stderr, ae.Format())
		os.Exit(1)
	}
}
