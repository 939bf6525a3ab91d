package cli

import (
	"fmt"
	"strings"

	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/spf13/cobra"
)

func newMemoCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memo",
		Short: "Manage memos",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <text...>",
		Short: "Add a memo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWriter(cmd, ro, func(st *state.Store, w entityWriter) error {
				m, err := w.AddMemo(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added memo %s\n", m.ID)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List memos, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, ro, func(st *state.Store) error {
				memos := st.Memos()
				if len(memos) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No memos.")
					return nil
				}
				for _, m := range memos {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatMemo(m, st.Location()))
				}
				return nil
			})
		},
	})
	cmd.AddCommand(newDeleteCmd(ro, "memo", entityWriter.DeleteMemo))
	return cmd
}
