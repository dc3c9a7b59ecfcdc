package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set via -ldflags at release time.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, _ := debug.ReadBuildInfo()
		printVersion(cmd.OutOrStdout(), info)
		return nil
	},
}

// printVersion falls back to the VCS stamp embedded by the go tool when no
// commit was injected.
func printVersion(out io.Writer, info *debug.BuildInfo) {
	rev, modified := commit, false
	if rev == "" && info != nil {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				rev = s.Value
			case "vcs.modified":
				modified = s.Value == "true"
			}
		}
	}

	fmt.Fprintf(out, "tx-ledger %s (%s)", version, runtime.Version())
	if rev != "" {
		if len(rev) > 12 {
			rev = rev[:12]
		}
		fmt.Fprintf(out, " commit %s", rev)
		if modified {
			fmt.Fprint(out, "-dirty")
		}
	}
	if date != "" {
		fmt.Fprintf(out, " built %s", date)
	}
	fmt.Fprintln(out)
}
