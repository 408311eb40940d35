package orchestrate

import (
	"fmt"
	"io"
	"strings"
)

// PrintSummary writes a human-readable run summary listing every stage
// outcome. Destructive runs additionally get residual-resource warnings for
// stages that failed, rather than silently succeeding.
func PrintSummary(w io.Writer, title string, results []RunResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, "  "+strings.Repeat("═", len(title)))
	fmt.Fprintln(w)

	var residual []string
	for _, res := range results {
		extra := res.Detail
		if res.TimedOut && extra == "" {
			extra = "readiness not observed"
		}
		if extra != "" {
			fmt.Fprintf(w, "  %s  %-24s %-10s %s (%v)\n",
				statusIndicator(res), res.Stage, res.Status, extra, res.Duration)
		} else {
			fmt.Fprintf(w, "  %s  %-24s %-10s (%v)\n",
				statusIndicator(res), res.Stage, res.Status, res.Duration)
		}

		if res.Status == StatusFailed || res.Status == StatusRolledBack {
			residual = append(residual, res.Stage)
		}
	}

	if len(residual) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Warning: the following stages did not complete; resources may remain: %s\n",
			strings.Join(residual, ", "))
	}
	fmt.Fprintln(w)
}

func statusIndicator(res RunResult) string {
	switch res.Status {
	case StatusApplied:
		if res.TimedOut {
			return "⚠" // warning sign
		}
		return "✅" // green check
	case StatusSkipped:
		return "⏭" // skip
	case StatusRolledBack:
		return "↩" // rollback arrow
	default:
		return "❌" // red X
	}
}
