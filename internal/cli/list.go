package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/mesh-intelligence/poe/pkg/types"
)

// minNameWidth is the narrowest task name column in the listing.
const minNameWidth = 13

const tasksHeading = "CONFIGURED TASKS"

var headingStyle = lipgloss.NewStyle().Bold(true)

// printTasks writes the usage text followed by the task listing.
func printTasks(w io.Writer, usage string, reg *types.Registry) {
	fmt.Fprintln(w, strings.TrimRight(usage, "\n"))
	fmt.Fprintln(w)

	heading := tasksHeading
	if isTerminal(w) {
		heading = headingStyle.Render(heading)
	}
	fmt.Fprintln(w, heading)

	if reg.Len() == 0 {
		fmt.Fprintln(w, "  (no tasks configured)")
		return
	}
	fmt.Fprint(w, formatTasks(reg))
}

// formatTasks renders one line per task in registry order: the name padded
// to a shared column width, two spaces, then the help text.
func formatTasks(reg *types.Registry) string {
	width := minNameWidth
	for _, name := range reg.Names() {
		width = max(width, len(name))
	}
	var b strings.Builder
	for _, task := range reg.Tasks() {
		fmt.Fprintf(&b, "  %-*s  %s\n", width, task.Name, task.Help)
	}
	return b.String()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
