package events

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// OutputFormatter formats events for human-readable debug-trace display,
// ported from datalog/annotations/output.go: same latency-colored prefix,
// same TTY auto-detection, generalized to this engine's own event names.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter, auto-detecting color support from
// w when w is a terminal.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}
	return &OutputFormatter{useColor: useColor, writer: w}
}

// Handle implements Handler.
func (f *OutputFormatter) Handle(event Event) {
	if output := f.Format(event); output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable line.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case RefreshStructureBegin:
		return fmt.Sprintf("%s %s structure refresh starting", latency, f.colorize("===", color.FgYellow))

	case RefreshStructureComplete:
		return fmt.Sprintf("%s structure refresh complete", latency)

	case RefreshMatchPointBegin:
		return fmt.Sprintf("%s %s match-point refresh starting", latency, f.colorize("===", color.FgYellow))

	case RefreshMatchBegin:
		return fmt.Sprintf("%s %s match refresh starting", latency, f.colorize("===", color.FgYellow))

	case RefreshMatchComplete:
		if n, ok := event.Data["delta.count"].(int); ok {
			return fmt.Sprintf("%s %s match refresh complete with %s",
				latency, f.colorize("===", color.FgGreen), f.colorizeCount("deltas", n))
		}
		return fmt.Sprintf("%s match refresh complete", latency)

	case QueryCalcRegistered:
		return fmt.Sprintf("%s node %v registered at path %v", latency, event.Data["node"], event.Data["path"])

	case QueryCalcMatchesUpdated:
		added, _ := event.Data["added"].(int)
		removed, _ := event.Data["removed"].(int)
		return fmt.Sprintf("%s matches %s / %s",
			latency, f.colorizeCount("added", added), f.colorizeCount("removed", removed))

	case QueryCalcSuspended:
		return fmt.Sprintf("%s %s node suspended", latency, f.colorize("‖", color.FgYellow))

	case QueryCalcResumed:
		return fmt.Sprintf("%s node resumed", latency)

	case OrderServiceSuspended:
		return fmt.Sprintf("%s %s order service suspended, comparator refresh pending",
			latency, f.colorize("‖", color.FgYellow))

	case OrderServiceRefreshed:
		if n, ok := event.Data["tree.size"].(int); ok {
			return fmt.Sprintf("%s order service resumed, tree now %s",
				latency, humanize.Comma(int64(n)))
		}
		return fmt.Sprintf("%s order service resumed", latency)

	case CompilerCompiled:
		return fmt.Sprintf("%s compiled term to %v executor", latency, event.Data["kind"])

	case CompilerMemoHit:
		return fmt.Sprintf("%s %s memo hit", latency, f.colorize("✓", color.FgGreen))

	case CompilerMemoMiss:
		return fmt.Sprintf("%s %s memo miss", latency, f.colorize("·", color.FgYellow))

	case ExecutorCacheBuilt:
		if n, ok := event.Data["size"].(int); ok {
			return fmt.Sprintf("%s built index over %s", latency, humanize.Comma(int64(n)))
		}
		return fmt.Sprintf("%s built index", latency)

	case ErrorShapeFallback:
		return fmt.Sprintf("%s %s shape-unknown term, falling back to interpreted: %v",
			latency, f.colorize("⚠", color.FgYellow), event.Data["term"])

	case ErrorProgrammer:
		return fmt.Sprintf("%s %s %v", latency, f.colorize("✗", color.FgRed), event.Data["error"])

	default:
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

func (f *OutputFormatter) formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)
	if !f.useColor {
		return s
	}
	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%s %s", humanize.Comma(int64(count)), label)
	if !f.useColor {
		return text
	}
	switch strings.ToLower(label) {
	case "added":
		return color.GreenString(text)
	case "removed":
		return color.RedString(text)
	case "deltas":
		return color.MagentaString(text)
	default:
		return text
	}
}

func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// ConsoleHandler creates a handler that prints formatted events to stdout.
func ConsoleHandler() Handler {
	formatter := NewOutputFormatter(os.Stdout)
	return func(event Event) {
		fmt.Fprintln(formatter.writer, formatter.Format(event))
	}
}

// isTerminal is a simplified TTY check: a proper implementation would use
// golang.org/x/term, but this matches the same simplification the teacher
// ships in datalog/annotations/output.go.
func isTerminal(fd uintptr) bool {
	return fd == uintptr(1) || fd == uintptr(2)
}
