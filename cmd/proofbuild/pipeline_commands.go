package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"proofbuild/internal/daemonrun"
	"proofbuild/internal/project"
)

var pipelineBuild = daemonrun.BuildOptions{WithGenerators: true, WithRunLog: true}

func newPollCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run one discovery pass over the uploads prefix",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), pipelineBuild, func(rt *daemonrun.Runtime) error {
				result, err := rt.Poller.Poll(cmd.Context())
				if err != nil {
					return fmt.Errorf("poll: %w", err)
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Manifests found: %d\n", result.ManifestsFound)
				fmt.Fprintf(out, "Processed: %d  Failed: %d  Skipped: %d\n", result.Processed, result.Failed, result.Skipped)
				fmt.Fprintf(out, "Correlation ID: %s\n", result.CorrelationID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the poll result as JSON")
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <project-id>",
		Short: "Run the pipeline once for a project stuck before a terminal stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if err := project.ValidateID(id); err != nil {
				return err
			}
			return ctx.withRuntime(cmd.Context(), pipelineBuild, func(rt *daemonrun.Runtime) error {
				state, err := rt.Poller.Resume(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("resume %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Project %s is %s\n", id, state.Stage)
				return nil
			})
		},
	}
}
