package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"proofbuild/internal/daemonrun"
	"proofbuild/internal/project"
)

func newInitCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Allocate a new project id",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			id := project.NewID(time.Now())
			out := cmd.OutOrStdout()
			if label := strings.TrimSpace(name); label != "" {
				fmt.Fprintf(out, "Project: %s\n", label)
			}
			fmt.Fprintf(out, "Project ID: %s\n", id)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintf(out, "  1. Upload screenshots to %s\n", project.ArtifactKey(id, project.ArtifactScreenshot, "<file>"))
			fmt.Fprintf(out, "  2. Run `proofbuild manifest --project %s --frames <dir>` once uploads finish\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Human readable label printed with the id")
	return cmd
}

type manifestFlags struct {
	projectID     string
	framesDir     string
	terminalDir   string
	logsDir       string
	artifactsFile string
	dryRun        bool
}

func newManifestCommand(ctx *commandContext) *cobra.Command {
	var flags manifestFlags

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Write the completion manifest that queues a project for processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(flags.projectID)
			if err := project.ValidateID(id); err != nil {
				return err
			}
			now := time.Now()
			artifacts, err := collectArtifacts(id, flags, now)
			if err != nil {
				return err
			}
			manifest, err := project.NewManifest(id, artifacts, now)
			if err != nil {
				return err
			}
			if flags.dryRun {
				return writeJSON(cmd, manifest)
			}
			return ctx.withRuntime(cmd.Context(), daemonrun.BuildOptions{}, func(rt *daemonrun.Runtime) error {
				if err := rt.States.PutManifest(cmd.Context(), manifest); err != nil {
					return fmt.Errorf("write manifest: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d artifacts)\n", project.ManifestKey(id), manifest.Artifacts.Count())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&flags.projectID, "project", "", "Project id (see `proofbuild init`)")
	cmd.Flags().StringVar(&flags.framesDir, "frames", "", "Directory of screenshots to list")
	cmd.Flags().StringVar(&flags.terminalDir, "terminal", "", "Directory of terminal captures to list")
	cmd.Flags().StringVar(&flags.logsDir, "logs", "", "Directory of log files to list")
	cmd.Flags().StringVar(&flags.artifactsFile, "artifacts-file", "", "JSON artifact collection to merge")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Print the manifest without writing it")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// collectArtifacts merges scanned directories with an optional artifact
// file. Scanned paths are rewritten to the object keys the uploader uses.
func collectArtifacts(id string, flags manifestFlags, now time.Time) (project.ArtifactCollection, error) {
	var collection project.ArtifactCollection
	if path := strings.TrimSpace(flags.artifactsFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return collection, fmt.Errorf("read artifacts file: %w", err)
		}
		if err := json.Unmarshal(data, &collection); err != nil {
			return collection, fmt.Errorf("parse artifacts file %s: %w", path, err)
		}
	}

	scans := []struct {
		dir  string
		kind project.ArtifactType
		dst  *[]project.Artifact
	}{
		{flags.framesDir, project.ArtifactScreenshot, &collection.Screenshots},
		{flags.terminalDir, project.ArtifactTerminal, &collection.Terminal},
		{flags.logsDir, project.ArtifactLog, &collection.Logs},
	}
	for _, scan := range scans {
		dir := strings.TrimSpace(scan.dir)
		if dir == "" {
			continue
		}
		found, err := project.ScanDirectory(dir, scan.kind, now)
		if err != nil {
			return collection, err
		}
		for i := range found {
			found[i].Path = project.ArtifactKey(id, scan.kind, found[i].Path)
		}
		*scan.dst = project.SortArtifacts(append(*scan.dst, found...))
	}
	if collection.Count() == 0 {
		return collection, errors.New("no artifacts found; pass --frames, --terminal, --logs, or --artifacts-file")
	}
	return collection, nil
}
