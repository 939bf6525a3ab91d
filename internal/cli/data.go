package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/config"
	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
	"github.com/spf13/cobra"
)

func newExportCmd(ro *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every collection as one JSON backup document",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			return withState(cmd, ro, func(st *state.Store) error {
				doc, err := st.Export()
				if err != nil {
					return err
				}
				now := time.Now()
				if output == "" {
					output = fmt.Sprintf("vexum-backup-%s.json", now.Format(dayLayout))
				}
				if output == "-" {
					_, err = cmd.OutOrStdout().Write(append(doc, '\n'))
				} else {
					err = os.WriteFile(output, doc, 0o600)
				}
				if err != nil {
					return err
				}
				if err := config.WriteLastBackup(home, now); err != nil {
					return fmt.Errorf("record backup time: %w", err)
				}
				if output != "-" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", formatBytes(len(doc)), output)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", `Output file ("-" for stdout, default vexum-backup-<date>.json)`)
	return cmd
}

func newImportCmd(ro *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the collections in a backup document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				doc []byte
				err error
			)
			if args[0] == "-" {
				if !yes {
					return errors.New("import from stdin needs --yes; the prompt would read the document")
				}
				doc, err = io.ReadAll(cmd.InOrStdin())
			} else {
				doc, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			snap, kinds, err := state.ParseExport(doc)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Document: %d staff, %d tasks, %d meetings, %d reports, %d shifts, %d memos\n",
				len(snap.Staff), len(snap.Tasks), len(snap.Meetings), len(snap.Reports), len(snap.Shifts), len(snap.Memos))
			if !yes {
				names := make([]string, len(kinds))
				for i, k := range kinds {
					names[i] = string(k)
				}
				ok, err := confirm(cmd, "This replaces "+strings.Join(names, ", ")+".", "replace")
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}
			return withWriter(cmd, ro, func(_ *state.Store, w entityWriter) error {
				if err := w.Import(cmd.Context(), doc); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(out, "Imported.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip confirmation prompt")
	return cmd
}

func newBackupCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Show when the last export was taken and whether a new one is due",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			last, err := config.ReadLastBackup(home)
			if err != nil {
				return err
			}
			return withState(cmd, ro, func(st *state.Store) error {
				doc, err := st.Export()
				if err != nil {
					return err
				}
				printBackupStatus(cmd.OutOrStdout(), state.AdviseBackup(last, time.Now(), len(doc)))
				return nil
			})
		},
	}
}

func printBackupStatus(w io.Writer, a models.BackupStatus) {
	if a.LastBackup == nil {
		_, _ = fmt.Fprintln(w, "Last backup: never")
	} else {
		_, _ = fmt.Fprintf(w, "Last backup: %s (%d days ago)\n", a.LastBackup.Local().Format("2006-01-02 15:04"), a.DaysSince)
	}
	_, _ = fmt.Fprintf(w, "Data size:   %s of %s (%.1f%%)\n", formatBytes(a.SizeBytes), formatBytes(a.BudgetBytes), a.UsedPercentage)
	if a.Recommended {
		_, _ = fmt.Fprintln(w, "Backup recommended: run `vexum export`")
	}
}

func newQuotaCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect or clear quota-exceeded mode of the running daemon",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether backend writes are blocked",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := daemonClient(cmd)
			if err != nil {
				return err
			}
			if c == nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Vexum not running; quota mode is held by the running server only.")
				return nil
			}
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			printSyncStatus(cmd.OutOrStdout(), st)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Resume backend writes after the storage limit was lifted",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := daemonClient(cmd)
			if err != nil {
				return err
			}
			if c == nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Vexum not running; nothing to clear.")
				return nil
			}
			if err := c.ClearQuota(cmd.Context()); err != nil {
				return err
			}
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			printSyncStatus(cmd.OutOrStdout(), st)
			return nil
		},
	})
	return cmd
}

func printSyncStatus(w io.Writer, st models.SyncStatus) {
	_, _ = fmt.Fprintf(w, "Quota: %s\n", quotaLabel(st.QuotaExceeded))
	if st.LastError != "" {
		at := ""
		if st.LastErrorAt != nil {
			at = st.LastErrorAt.Local().Format("2006-01-02 15:04:05") + " "
		}
		_, _ = fmt.Fprintf(w, "Last error: %s%s\n", at, st.LastError)
	}
	for _, kind := range models.Kinds {
		_, _ = fmt.Fprintf(w, "  %-9s %5d items (v%d)\n", kind, st.Counts[kind], st.Versions[kind])
	}
}
