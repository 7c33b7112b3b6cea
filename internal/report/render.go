package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// maxMessageWidth truncates error messages in the failure table.
const maxMessageWidth = 60

// Render writes a human-readable summary of r: counts by state and a table
// of every failed or cancelled grid point.
func Render(w io.Writer, r *Report) error {
	if r == nil {
		_, err := fmt.Fprintln(w, "no report")
		return err
	}
	s := r.Summary()

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("depth sweep %s", r.SweepID)))
	b.WriteByte('\n')
	if r.Filters != "" {
		b.WriteString(dimStyle.Render("filters  " + r.Filters))
		b.WriteByte('\n')
	}
	b.WriteString(dimStyle.Render("test dir " + r.TestDir))
	b.WriteByte('\n')

	if r.DryRun {
		b.WriteString(warnStyle.Render(fmt.Sprintf("dry run: %d invocations planned", s.Planned)))
		b.WriteByte('\n')
		_, err := io.WriteString(w, b.String())
		return err
	}

	elapsed := r.FinishTime.Sub(r.StartTime).Round(time.Millisecond)
	counts := fmt.Sprintf("%d/%d succeeded", s.Succeeded, s.Total)
	if s.OK() {
		b.WriteString(okStyle.Render(counts))
	} else {
		b.WriteString(failStyle.Render(counts))
		b.WriteString(fmt.Sprintf(", %d failed, %d cancelled", s.Failed, s.Cancelled))
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf(" in %s on %d workers", elapsed, r.Workers)))
	b.WriteByte('\n')

	if bad := r.Unsuccessful(); len(bad) > 0 {
		rows := make([][]string, 0, len(bad))
		for _, t := range bad {
			exit := "-"
			if t.ExitCode != nil {
				exit = strconv.Itoa(*t.ExitCode)
			}
			rows = append(rows, []string{
				t.RunID,
				strconv.Itoa(t.I),
				strconv.Itoa(t.J),
				exit,
				string(t.Class),
				truncate(t.Message, maxMessageWidth),
			})
		}
		tbl := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("RUN", "I", "J", "EXIT", "CLASS", "MESSAGE").
			Rows(rows...)
		b.WriteString(tbl.String())
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
