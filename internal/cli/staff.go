package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
	"github.com/spf13/cobra"
)

func newStaffCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff members",
	}
	cmd.AddCommand(newStaffAddCmd(ro))
	cmd.AddCommand(newStaffListCmd(ro))
	cmd.AddCommand(newStaffUpdateCmd(ro))
	cmd.AddCommand(newDeleteCmd(ro, "staff member", entityWriter.DeleteStaff))
	return cmd
}

func newStaffAddCmd(ro *rootOptions) *cobra.Command {
	var name, client, start, end, email, phone, reportURL string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a staff member",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			return withWriter(cmd, ro, func(st *state.Store, w entityWriter) error {
				draft := models.Staff{
					Name:           name,
					CurrentClient:  client,
					Contact:        models.Contact{Email: email, Phone: phone},
					DailyReportURL: reportURL,
				}
				draft.AssignmentPeriod.Start = time.Now()
				if start != "" {
					t, err := parseDay("start", start, st.Location())
					if err != nil {
						return err
					}
					draft.AssignmentPeriod.Start = t
				}
				if end != "" {
					t, err := parseDay("end", end, st.Location())
					if err != nil {
						return err
					}
					draft.AssignmentPeriod.End = &t
				}
				s, err := w.AddStaff(cmd.Context(), draft)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added staff %q (%s)\n", s.Name, s.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Name")
	cmd.Flags().StringVar(&client, "client", "", "Current client")
	cmd.Flags().StringVar(&start, "start", "", "Assignment start (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&end, "end", "", "Assignment end (YYYY-MM-DD, default ongoing)")
	cmd.Flags().StringVar(&email, "email", "", "Email")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone")
	cmd.Flags().StringVar(&reportURL, "report-url", "", "Daily report document URL")
	return cmd
}

func newStaffListCmd(ro *rootOptions) *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List staff members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, ro, func(st *state.Store) error {
				staff := st.Staff()
				if active {
					staff = st.ActiveStaff()
				}
				if len(staff) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No staff.")
					return nil
				}
				now := time.Now()
				for _, s := range staff {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatStaff(s, now))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "Only staff whose assignment has not ended")
	return cmd
}

func newStaffUpdateCmd(ro *rootOptions) *cobra.Command {
	var name, client, end, email, phone string
	var ongoing bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a staff member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWriter(cmd, ro, func(st *state.Store, w entityWriter) error {
				var p models.StaffPatch
				flags := cmd.Flags()
				if flags.Changed("name") {
					p.Name = &name
				}
				if flags.Changed("client") {
					p.CurrentClient = &client
				}
				if flags.Changed("email") || flags.Changed("phone") {
					p.Contact = &models.ContactPatch{}
					if flags.Changed("email") {
						p.Contact.Email = &email
					}
					if flags.Changed("phone") {
						p.Contact.Phone = &phone
					}
				}
				if end != "" || ongoing {
					p.AssignmentPeriod = &models.AssignmentPeriodPatch{Ongoing: ongoing}
					if end != "" {
						t, err := parseDay("end", end, st.Location())
						if err != nil {
							return err
						}
						p.AssignmentPeriod.End = &t
					}
				}
				s, err := w.UpdateStaff(cmd.Context(), args[0], p)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatStaff(s, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Name")
	cmd.Flags().StringVar(&client, "client", "", "Current client")
	cmd.Flags().StringVar(&end, "end", "", "Assignment end (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&ongoing, "ongoing", false, "Clear the assignment end")
	cmd.Flags().StringVar(&email, "email", "", "Email")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone")
	return cmd
}

// newDeleteCmd builds "delete <id>" for one collection.
func newDeleteCmd(ro *rootOptions, noun string, remove func(w entityWriter, ctx context.Context, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWriter(cmd, ro, func(_ *state.Store, w entityWriter) error {
				if err := remove(w, cmd.Context(), args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", noun, args[0])
				return nil
			})
		},
	}
}
