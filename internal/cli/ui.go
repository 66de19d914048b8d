package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/quickclaw/quickclaw/internal/lifecycle"
)

func printHeader(w io.Writer, title string) {
	if jsonOutput {
		return
	}
	fmt.Fprintln(w, color.CyanString(logo))
	if title != "" {
		fmt.Fprintln(w, title)
		fmt.Fprintln(w, "─────────────────────")
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusMark(status string) string {
	switch status {
	case lifecycle.StatusDone:
		return color.GreenString("✓")
	case lifecycle.StatusFailed:
		return color.RedString("✗")
	default:
		return color.YellowString("–")
	}
}

func yesNo(ok bool) string {
	if ok {
		return color.GreenString("✓")
	}
	return color.RedString("✗")
}

// printReport renders a lifecycle report; it returns an error when the run
// failed so the process exits non-zero.
func printReport(w io.Writer, rep *lifecycle.Report) error {
	if jsonOutput {
		if err := printJSON(w, rep); err != nil {
			return err
		}
	} else {
		for _, s := range rep.Steps {
			line := fmt.Sprintf("%s %s", statusMark(s.Status), s.Step)
			if s.Detail != "" {
				line += "  " + s.Detail
			}
			fmt.Fprintln(w, line)
		}
		if len(rep.RecentLog) > 0 {
			fmt.Fprintln(w, "\nRecent gateway log:")
			for _, l := range rep.RecentLog {
				fmt.Fprintln(w, "  "+l)
			}
		}
		if rep.RunID != "" {
			fmt.Fprintf(w, "\nRun: %s (%s)\n", rep.RunID, rep.State)
		}
	}
	if !rep.OK {
		return fmt.Errorf("%s", rep.Error)
	}
	return nil
}
