package cli

import (
	"errors"
	"fmt"

	"github.com/kshoda-lgtm/vexum-management/internal/state"
	"github.com/kshoda-lgtm/vexum-management/pkg/models"
	"github.com/spf13/cobra"
)

func newMeetingCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meeting",
		Short: "Manage client meetings and their decisions",
	}
	cmd.AddCommand(newMeetingAddCmd(ro))
	cmd.AddCommand(newMeetingListCmd(ro))
	cmd.AddCommand(newMeetingDecideCmd(ro))
	cmd.AddCommand(newDeleteCmd(ro, "meeting", entityWriter.DeleteMeeting))
	return cmd
}

func newMeetingAddCmd(ro *rootOptions) *cobra.Command {
	var title, client, date, next, agenda, notes string
	var staffIDs, participants, decisions, taskDecisions []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a meeting (decisions given with --task-decision become tasks)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" || date == "" {
				return errors.New("--title and --date are required")
			}
			return withWriter(cmd, ro, func(st *state.Store, w entityWriter) error {
				when, err := parseDay("date", date, st.Location())
				if err != nil {
					return err
				}
				draft := models.Meeting{
					Title:        title,
					ClientName:   client,
					Date:         when,
					StaffIDs:     staffIDs,
					Participants: participants,
					Agenda:       agenda,
					Notes:        notes,
				}
				if next != "" {
					t, err := parseDay("next", next, st.Location())
					if err != nil {
						return err
					}
					draft.NextMeetingDate = &t
				}
				for _, c := range decisions {
					draft.Decisions = append(draft.Decisions, models.Decision{Content: c})
				}
				for _, c := range taskDecisions {
					draft.Decisions = append(draft.Decisions, models.Decision{Content: c, IsTaskCreated: true})
				}
				m, err := w.AddMeeting(cmd.Context(), draft)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatMeeting(m, st.Location()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Title")
	cmd.Flags().StringVar(&client, "client", "", "Client name")
	cmd.Flags().StringVar(&date, "date", "", "Meeting date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&next, "next", "", "Next meeting date")
	cmd.Flags().StringVar(&agenda, "agenda", "", "Agenda")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes")
	cmd.Flags().StringSliceVar(&staffIDs, "staff", nil, "Participating staff ids")
	cmd.Flags().StringSliceVar(&participants, "participant", nil, "External participant names")
	cmd.Flags().StringArrayVar(&decisions, "decision", nil, "Decision text (repeatable)")
	cmd.Flags().StringArrayVar(&taskDecisions, "task-decision", nil, "Decision text that becomes a task (repeatable)")
	return cmd
}

func newMeetingListCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List meetings with their decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, ro, func(st *state.Store) error {
				meetings := st.Meetings()
				if len(meetings) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No meetings.")
					return nil
				}
				for _, m := range meetings {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatMeeting(m, st.Location()))
				}
				return nil
			})
		},
	}
}

func newMeetingDecideCmd(ro *rootOptions) *cobra.Command {
	var content, promote string
	cmd := &cobra.Command{
		Use:   "decide <meeting-id>",
		Short: "Add a decision (--content) or promote an existing one into a task (--promote <decision-id>)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (content == "") == (promote == "") {
				return errors.New("exactly one of --content or --promote is required")
			}
			return withWriter(cmd, ro, func(st *state.Store, w entityWriter) error {
				m, ok := st.GetMeeting(args[0])
				if !ok {
					return fmt.Errorf("meeting %s not found", args[0])
				}
				decisions := append([]models.Decision{}, m.Decisions...)
				if content != "" {
					decisions = append(decisions, models.Decision{Content: content, IsTaskCreated: true})
				} else {
					found := false
					for i := range decisions {
						if decisions[i].ID == promote {
							decisions[i].IsTaskCreated = true
							found = true
						}
					}
					if !found {
						return fmt.Errorf("decision %s not found in meeting %s", promote, m.ID)
					}
				}
				out, err := w.UpdateMeeting(cmd.Context(), m.ID, models.MeetingPatch{Decisions: &decisions})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatMeeting(out, st.Location()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "New decision text; a task is created for it")
	cmd.Flags().StringVar(&promote, "promote", "", "Existing decision id to turn into a task")
	return cmd
}
