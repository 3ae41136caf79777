package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"proofbuild/internal/daemonrun"
	"proofbuild/internal/project"
	"proofbuild/internal/runlog"
)

const defaultHistoryLimit = 20

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [project-id]",
		Short: "Show pipeline state for all projects or one project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), daemonrun.BuildOptions{}, func(rt *daemonrun.Runtime) error {
				out := cmd.OutOrStdout()
				colorize := !jsonOutput && shouldColorize(out)

				if len(args) == 1 {
					id := strings.TrimSpace(args[0])
					if err := project.ValidateID(id); err != nil {
						return err
					}
					state, ok, err := rt.States.Load(cmd.Context(), id)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("project %s has no state yet", id)
					}
					if jsonOutput {
						return writeJSON(cmd, state)
					}
					for _, line := range stateDetailLines(state, colorize) {
						fmt.Fprintln(out, line)
					}
					return nil
				}

				states, err := rt.States.ListStates(cmd.Context())
				if err != nil {
					return err
				}
				sort.Slice(states, func(i, j int) bool {
					return states[i].UpdatedAt.After(states[j].UpdatedAt)
				})
				if jsonOutput {
					if states == nil {
						states = []project.State{}
					}
					return writeJSON(cmd, states)
				}
				if len(states) == 0 {
					fmt.Fprintln(out, "No projects found")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Project", "Stage", "Script", "Audio", "Updated", "Error"},
					stateRows(states, colorize),
					nil,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print state as JSON")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var projectID string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs from the run ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			opts := daemonrun.BuildOptions{WithRunLog: true}
			return ctx.withRuntime(cmd.Context(), opts, func(rt *daemonrun.Runtime) error {
				var (
					entries []runlog.Entry
					err     error
				)
				if id := strings.TrimSpace(projectID); id != "" {
					entries, err = rt.Runs.ForProject(cmd.Context(), id, limit)
				} else {
					entries, err = rt.Runs.Recent(cmd.Context(), limit)
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					if entries == nil {
						entries = []runlog.Entry{}
					}
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Started", "Project", "Trigger", "From", "To", "Outcome", "Duration", "Error"},
					historyRows(entries),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Only show runs for this project")
	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "Maximum number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	return cmd
}

func historyRows(entries []runlog.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			formatTime(entry.StartedAt),
			entry.ProjectID,
			entry.Trigger,
			string(entry.StartStage),
			string(entry.FinalStage),
			string(entry.Outcome),
			entry.Duration().Round(10 * time.Millisecond).String(),
			truncate(entry.ErrorMessage, 48),
		})
	}
	return rows
}
