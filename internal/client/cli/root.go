package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/wopihost/internal/client/config"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the wopictl command tree writing to out and reading
// confirmations from in.
func NewRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	app := &App{out: out, reader: bufio.NewReader(in)}
	var configPath string

	root := &cobra.Command{
		Use:   "wopictl",
		Short: "Administer a WOPI host",
		Long: `wopictl talks to the admin gRPC API of a WOPI host. It prunes
protocol versions, inspects and clears file locks and imports files.
Every command is recorded in a local SQLite history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			app.config = cfg
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return app.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (yaml, json or toml)")
	pf.String("server", "", "admin gRPC address (host:port)")
	pf.String("user", "", "admin identity")
	pf.String("secret", "", "server secret; prompted for when empty")
	pf.Duration("timeout", 0, "per call timeout")
	pf.String("history", "", "history database file, empty string disables it")
	pf.BoolVar(&app.jsonOutput, "json", false, "output in JSON format")

	root.AddCommand(
		newPingCmd(app),
		newPruneCmd(app),
		newLockCmd(app),
		newUnlockCmd(app),
		newRevokeCmd(app),
		newImportCmd(app),
		newHistoryCmd(app),
	)
	return root
}

// Execute runs wopictl on the process arguments.
func Execute() {
	if err := NewRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		os.Exit(1)
	}
}
