package scriptgen

import (
	"fmt"
	"strings"

	"proofbuild/internal/project"
)

// SystemPrompt frames every provider call.
const SystemPrompt = "You are a technical narrator. You respond with a single JSON object and nothing else."

// BuildPrompt renders the script generation prompt for a project.
func BuildPrompt(projectID string, artifacts project.ArtifactCollection, opts Options) string {
	opts = opts.withDefaults()
	var b strings.Builder

	b.WriteString("You are a technical narrator creating a video script for a development project demonstration.\n\n")
	fmt.Fprintf(&b, "PROJECT ID: %s\n\n", projectID)
	b.WriteString("ARTIFACTS PROVIDED:\n")
	writeOrderedList(&b, "Screenshots", artifacts.Screenshots)
	writeOrderedList(&b, "Terminal Output", artifacts.Terminal)
	if len(artifacts.Logs) > 0 {
		fmt.Fprintf(&b, "Log Files (%d):\n", len(artifacts.Logs))
		for _, a := range artifacts.Logs {
			fmt.Fprintf(&b, "  - %s%s\n", a.Filename, sizeSuffix(a))
		}
	}

	b.WriteString(`
TASK:
Generate a narration script that explains what the developer built, following the order of screenshots and terminal output. The script should:
1. Introduce the project briefly
2. Walk through each screenshot/terminal output in order
3. Explain what's happening at each step
4. Highlight key features or achievements
5. Conclude with a summary

`)
	fmt.Fprintf(&b, "TONE: %s\nLANGUAGE: %s\n\n", opts.Tone, opts.Language)
	fmt.Fprintf(&b, `OUTPUT FORMAT:
Return a JSON object with this exact structure:
{
  "segments": [
    {
      "text": "Narration text for this segment",
      "startTime": 0.0,
      "duration": 5.0,
      "frameIndex": 0
    }
  ],
  "totalDuration": 30.0,
  "metadata": {
    "tone": %q,
    "language": %q
  }
}

RULES:
- Each segment should correspond to a screenshot or terminal output
- startTime is in seconds from the start of the video
- duration is in seconds for this segment
- frameIndex is the 0-based index of the screenshot (optional, only if segment corresponds to a screenshot)
- Segments should flow naturally and be easy to narrate
- Keep each segment between 3-8 seconds of narration
- Total duration should be reasonable (typically 30-120 seconds for most projects)
- Use clear, concise language appropriate for the %s tone

Generate the script now:`, opts.Tone, opts.Language, opts.Tone)
	return b.String()
}

func writeOrderedList(b *strings.Builder, title string, artifacts []project.Artifact) {
	if len(artifacts) == 0 {
		return
	}
	fmt.Fprintf(b, "%s (%d):\n", title, len(artifacts))
	for i, a := range artifacts {
		order := i + 1
		if a.Order != nil {
			order = *a.Order
		}
		fmt.Fprintf(b, "  %d. %s%s\n", order, a.Filename, sizeSuffix(a))
	}
}

func sizeSuffix(a project.Artifact) string {
	if a.Size == nil || *a.Size <= 0 {
		return ""
	}
	return fmt.Sprintf(" (%d bytes)", *a.Size)
}
