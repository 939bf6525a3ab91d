package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
	"github.com/spf13/cobra"
)

func newShiftCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shift",
		Short: "Manage the shift calendar",
	}
	cmd.AddCommand(newShiftAddCmd(ro))
	cmd.AddCommand(newShiftListCmd(ro))
	cmd.AddCommand(newDeleteCmd(ro, "shift", entityWriter.DeleteShift))
	return cmd
}

func newShiftAddCmd(ro *rootOptions) *cobra.Command {
	var client, staff, start, end, notes string
	var dates []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add one shift per --date in a single write",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(dates) == 0 {
				return errors.New("at least one --date is required")
			}
			return withWriter(cmd, ro, func(st *state.Store, w entityWriter) error {
				days := make([]time.Time, 0, len(dates))
				for _, d := range dates {
					t, err := parseDay("date", d, st.Location())
					if err != nil {
						return err
					}
					days = append(days, t)
				}
				shifts, err := w.AddShifts(cmd.Context(), models.Shift{
					ClientName: client,
					StaffID:    staff,
					StartTime:  start,
					EndTime:    end,
					Notes:      notes,
				}, days)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %d shift(s)\n", len(shifts))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&client, "client", "", "Client name")
	cmd.Flags().StringVar(&staff, "staff", "", "Staff identifier")
	cmd.Flags().StringVar(&start, "start", "09:00", "Start time (HH:MM)")
	cmd.Flags().StringVar(&end, "end", "18:00", "End time (HH:MM)")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes")
	cmd.Flags().StringSliceVar(&dates, "date", nil, "Dates (YYYY-MM-DD, repeatable or comma separated)")
	return cmd
}

func newShiftListCmd(ro *rootOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List shifts by date (optionally within --from/--to)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, ro, func(st *state.Store) error {
				shifts := st.Shifts()
				if from != "" || to != "" {
					lo, hi := time.Time{}, time.Now().AddDate(100, 0, 0)
					var err error
					if from != "" {
						if lo, err = parseDay("from", from, st.Location()); err != nil {
							return err
						}
					}
					if to != "" {
						if hi, err = parseDay("to", to, st.Location()); err != nil {
							return err
						}
					}
					shifts = st.ShiftsBetween(lo, hi)
				}
				if len(shifts) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No shifts.")
					return nil
				}
				for _, s := range shifts {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatShift(s, st.Location()))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD)")
	return cmd
}
