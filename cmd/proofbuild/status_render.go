package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"proofbuild/internal/pipeline"
	"proofbuild/internal/project"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

const detailLabelWidth = 12

func stageLabel(stage pipeline.Stage, colorize bool) string {
	label := string(stage)
	if !colorize {
		return label
	}
	switch {
	case stage == pipeline.StageReady:
		return ansiGreen + label + ansiReset
	case stage == pipeline.StageError:
		return ansiRed + label + ansiReset
	default:
		return ansiYellow + label + ansiReset
	}
}

func stateRows(states []project.State, colorize bool) [][]string {
	rows := make([][]string, 0, len(states))
	for _, state := range states {
		message := ""
		if state.Error != nil {
			message = truncate(state.Error.Message, 60)
		}
		rows = append(rows, []string{
			state.ProjectID,
			stageLabel(state.Stage, colorize),
			yesNo(state.Metadata.ScriptGenerated),
			yesNo(state.Metadata.AudioGenerated),
			formatTime(state.UpdatedAt),
			message,
		})
	}
	return rows
}

func stateDetailLines(state project.State, colorize bool) []string {
	lines := []string{
		detailLine("Project", state.ProjectID),
		detailLine("Stage", stageLabel(state.Stage, colorize)),
		detailLine("Created", formatTime(state.CreatedAt)),
		detailLine("Updated", formatTime(state.UpdatedAt)),
		detailLine("Script", yesNo(state.Metadata.ScriptGenerated)),
		detailLine("Audio", yesNo(state.Metadata.AudioGenerated)),
		detailLine("Artifacts", fmt.Sprintf("%d", state.Metadata.ArtifactsProcessed)),
	}
	if state.Error != nil {
		lines = append(lines,
			detailLine("Failed at", string(state.Error.Stage)),
			detailLine("Error", state.Error.Message),
		)
		if code := strings.TrimSpace(state.Error.Code); code != "" {
			lines = append(lines, detailLine("Code", code))
		}
	}
	return lines
}

func detailLine(label, value string) string {
	return fmt.Sprintf("%-*s %s", detailLabelWidth, label+":", value)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
