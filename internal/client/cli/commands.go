package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newPingCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the admin service is serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := app.connect()
			if err != nil {
				return err
			}
			if err := c.Ping(cmd.Context()); err != nil {
				return err
			}
			return app.print(map[string]string{"status": "SERVING"}, "SERVING")
		},
	}
}

func newPruneCmd(app *App) *cobra.Command {
	var keepAuto, keepExplicit int

	cmd := &cobra.Command{
		Use:   "prune FILE_ID",
		Short: "Delete old autosave and explicit versions of a file",
		Long: `Delete protocol versions of a file, keeping the newest ones of each
lineage. A negative keep disables pruning of that lineage; an omitted keep
uses the server default.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID := args[0]
			var autoPtr, explicitPtr *int
			if cmd.Flags().Changed("keep-auto") {
				autoPtr = &keepAuto
			}
			if cmd.Flags().Changed("keep-explicit") {
				explicitPtr = &keepExplicit
			}

			c, err := app.connect()
			if err != nil {
				return err
			}
			res, err := c.Prune(cmd.Context(), fileID, autoPtr, explicitPtr)
			detail := ""
			if res != nil {
				detail = fmt.Sprintf("deleted %d, retained %d", len(res.Deleted), len(res.Retained))
			}
			app.record(cmd.Context(), "prune", fileID, detail, err)
			if err != nil {
				return err
			}

			text := fmt.Sprintf("Deleted:  %s\nRetained: %s\nSkipped:  %s",
				joinOrNone(res.Deleted), joinOrNone(res.Retained), joinOrNone(res.Skipped))
			return app.print(res, text)
		},
	}
	cmd.Flags().IntVar(&keepAuto, "keep-auto", 0, "autosave versions to keep")
	cmd.Flags().IntVar(&keepExplicit, "keep-explicit", 0, "explicit versions to keep")
	return cmd
}

func newLockCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "lock FILE_ID",
		Short: "Show the lock held on a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.connect()
			if err != nil {
				return err
			}
			info, err := c.GetLock(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			text := fmt.Sprintf("File %s is not locked", info.FileID)
			if info.Locked {
				text = fmt.Sprintf("File %s is locked\n  Lock ID: %s\n  Owner:   %s\n  Expires: %s",
					info.FileID, info.LockID, info.Owner, info.ExpiresAt)
			}
			return app.print(info, text)
		},
	}
}

func newUnlockCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock FILE_ID",
		Short: "Clear the lock of a file regardless of its holder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.connect()
			if err != nil {
				return err
			}
			err = c.ForceUnlock(cmd.Context(), args[0])
			app.record(cmd.Context(), "unlock", args[0], "", err)
			if err != nil {
				return err
			}
			return app.print(map[string]any{"file_id": args[0], "unlocked": true},
				fmt.Sprintf("Lock cleared on %s", args[0]))
		},
	}
}

func newRevokeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke FILE_ID USER",
		Short: "Invalidate the access token a user holds for a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.connect()
			if err != nil {
				return err
			}
			err = c.RevokeToken(cmd.Context(), args[0], args[1])
			app.record(cmd.Context(), "revoke", args[0], "user="+args[1], err)
			if err != nil {
				return err
			}
			return app.print(map[string]any{"file_id": args[0], "user": args[1], "revoked": true},
				fmt.Sprintf("Token of %s on %s revoked", args[1], args[0]))
		},
	}
}

func newImportCmd(app *App) *cobra.Command {
	var fileID, name, owner, mimeType string

	cmd := &cobra.Command{
		Use:   "import PATH",
		Short: "Upload a local file as a new WOPI file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(args[0])
			}
			if fileID == "" {
				fileID = strings.TrimSuffix(name, filepath.Ext(name))
			}

			c, err := app.connect()
			if err != nil {
				return err
			}
			res, err := c.Import(cmd.Context(), fileID, name, owner, mimeType, data)
			detail := ""
			if res != nil {
				detail = fmt.Sprintf("%s, %d bytes", res.Name, res.Size)
			}
			app.record(cmd.Context(), "import", fileID, detail, err)
			if err != nil {
				return err
			}
			return app.print(res, fmt.Sprintf("Imported %s as %s (%s, %d bytes, owner %s)",
				res.Name, res.FileID, res.MimeType, res.Size, res.Owner))
		},
	}
	cmd.Flags().StringVar(&fileID, "id", "", "file id (default: file name without extension)")
	cmd.Flags().StringVar(&name, "name", "", "file name shown in the editor (default: base name of PATH)")
	cmd.Flags().StringVar(&owner, "owner", "", "owning identity (default: the admin user)")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type (default: detected by the server)")
	return cmd
}

func newHistoryCmd(app *App) *cobra.Command {
	var (
		limit  int
		fileID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the commands recorded in the local history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := app.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			if repo == nil {
				return fmt.Errorf("history is disabled")
			}
			entries, err := repo.List(cmd.Context(), fileID, limit)
			if err != nil {
				return err
			}

			var b strings.Builder
			for _, e := range entries {
				state := "ok"
				if !e.OK {
					state = "FAILED"
				}
				fmt.Fprintf(&b, "%s  %-7s %-6s %-12s %s\n", e.At.Local().Format(time.DateTime), e.Command, state, e.FileID, e.Detail)
			}
			if len(entries) == 0 {
				b.WriteString("No history\n")
			}
			return app.print(entries, strings.TrimRight(b.String(), "\n"))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "entries to show, 0 for all")
	cmd.Flags().StringVar(&fileID, "file", "", "only show entries of this file")

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the local history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := app.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			if repo == nil {
				return fmt.Errorf("history is disabled")
			}
			if !yes {
				ok, err := confirm(app.reader, "Delete all history entries?", app.out)
				if err != nil {
					return err
				}
				if !ok {
					return app.print(map[string]bool{"cleared": false}, "Aborted")
				}
			}
			if err := repo.Clear(cmd.Context()); err != nil {
				return err
			}
			return app.print(map[string]bool{"cleared": true}, "History cleared")
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.AddCommand(clearCmd)
	return cmd
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}
