package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// renderMarkdown renders markdown content, using glamour for terminal output or plain text otherwise
func renderMarkdown(markdown string, theme string, tty bool) string {
	if !tty || theme == "notty" {
		return markdown
	}
	if theme == "" {
		theme = "auto"
	}

	rendered, err := glamour.Render(markdown, theme)
	if err != nil {
		// Fall back to plain markdown if rendering fails
		return markdown
	}
	return rendered
}

// isTerminal reports whether out is an interactive terminal
func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printJSON writes v as indented JSON. On a terminal it is rendered as a
// highlighted code block using the context's theme.
func printJSON(out io.Writer, v any, theme string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	if !isTerminal(out) {
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	_, err = fmt.Fprint(out, renderMarkdown("```json\n"+string(data)+"\n```\n", theme, true))
	return err
}
