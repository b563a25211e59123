package formatter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

var (
	Bold    = color.New(color.Bold)
	Success = color.New(color.FgGreen)
	Error   = color.New(color.FgRed)
	Info    = color.New(color.FgCyan)
	Warning = color.New(color.FgYellow)
	Faint   = color.New(color.Faint)
	Self    = color.New(color.FgGreen, color.Bold)
	Peer    = color.New(color.FgBlue, color.Bold)
)

// Out is where the Print helpers write.
var Out io.Writer = os.Stdout

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	Success.Fprintf(Out, format+"\n", args...)
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	Error.Fprintf(Out, "Error: "+format+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	Info.Fprintf(Out, format+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	Warning.Fprintf(Out, "Warning: "+format+"\n", args...)
}

// PrintTable prints rows aligned under headers.
func PrintTable(headers []string, rows [][]string) {
	FprintTable(Out, headers, rows)
}

// FprintTable writes rows aligned under headers to out.
func FprintTable(out io.Writer, headers []string, rows [][]string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	Bold.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

// ChatLine renders one chat message. Messages from me are highlighted and
// unconfirmed relay messages are marked.
func ChatLine(sender, text, img string, at time.Time, mine, pending bool) string {
	name := Peer.Sprint(sender)
	if mine {
		name = Self.Sprint(sender)
	}

	var sb strings.Builder
	sb.WriteString(Faint.Sprint(at.Local().Format("15:04")))
	sb.WriteString(" ")
	sb.WriteString(name)
	sb.WriteString(": ")
	sb.WriteString(text)
	if img != "" {
		if text != "" {
			sb.WriteString(" ")
		}
		sb.WriteString(Info.Sprintf("[image %s]", img))
	}
	if pending {
		sb.WriteString(Faint.Sprint(" (live)"))
	}
	return sb.String()
}

// Truncate shortens s to max runes, marking the cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
