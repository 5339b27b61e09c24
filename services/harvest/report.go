package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"evcs-harvester/lib/notify"
)

const reportTimeLayout = "January 2, 2006 at 15:04 MST"

// Summary is everything the run report needs about a finished run,
// successful or not.
type Summary struct {
	RunID        string
	Timestamp    time.Time
	Stations     int
	Chargepoints int
	Skipped      int
	Manifest     []string
	Warnings     []string
	Err          error
}

// ComposeReport builds the notification message for a run. A run with
// a non-nil error gets the failure report, everything else gets the
// success report with the exported files attached.
func ComposeReport(ctx context.Context, summary Summary, recipient string) notify.Message {
	if summary.Err != nil {
		return notify.Message{
			Subject:     fmt.Sprintf("EVCS data harvest failed (run %s)", summary.RunID),
			HTML:        failureHTML(summary),
			Recipient:   recipient,
			Attachments: readAttachments(ctx, summary.Manifest),
		}
	}
	return notify.Message{
		Subject:     fmt.Sprintf("EVCS data export: %d stations processed", summary.Stations),
		HTML:        successHTML(summary),
		Recipient:   recipient,
		Attachments: readAttachments(ctx, summary.Manifest),
	}
}

func successHTML(summary Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>The charging station harvest finished on %s.</p>",
		summary.Timestamp.Format(reportTimeLayout))
	b.WriteString(statsHTML(summary))

	b.WriteString("<p>Exported files:</p><ul>")
	for _, path := range summary.Manifest {
		fmt.Fprintf(&b, "<li>%s</li>", filepath.Base(path))
	}
	b.WriteString("</ul>")

	b.WriteString(warningsHTML(summary.Warnings))
	return b.String()
}

func failureHTML(summary Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>The charging station harvest failed on %s.</p>",
		summary.Timestamp.Format(reportTimeLayout))

	b.WriteString("<p>Error chain:</p><ul>")
	for err := summary.Err; err != nil; err = errors.Unwrap(err) {
		fmt.Fprintf(&b, "<li>%s</li>", err.Error())
	}
	b.WriteString("</ul>")

	if len(summary.Manifest) > 0 {
		b.WriteString("<p>Partial files generated:</p><ul>")
		for _, path := range summary.Manifest {
			fmt.Fprintf(&b, "<li>%s</li>", filepath.Base(path))
		}
		b.WriteString("</ul>")
	} else {
		b.WriteString("<p>No files were generated.</p>")
	}

	b.WriteString(warningsHTML(summary.Warnings))
	return b.String()
}

func statsHTML(summary Summary) string {
	w := table.NewWriter()
	w.AppendHeader(table.Row{"Metric", "Value"})
	w.AppendRow(table.Row{"Run", summary.RunID})
	w.AppendRow(table.Row{"Unique stations", summary.Stations})
	w.AppendRow(table.Row{"Charge points", summary.Chargepoints})
	if summary.Skipped > 0 {
		w.AppendRow(table.Row{"Records without identity", summary.Skipped})
	}
	return w.RenderHTML()
}

func warningsHTML(warnings []string) string {
	if len(warnings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<p>Warnings:</p><ul>")
	for _, warning := range warnings {
		fmt.Fprintf(&b, "<li>%s</li>", warning)
	}
	b.WriteString("</ul>")
	return b.String()
}

// ConsoleSummary renders the run outcome for the terminal.
func ConsoleSummary(summary Summary) string {
	w := table.NewWriter()
	w.AppendHeader(table.Row{"Metric", "Value"})
	w.AppendRow(table.Row{"Run", summary.RunID})
	w.AppendRow(table.Row{"Finished", summary.Timestamp.Format(reportTimeLayout)})
	w.AppendRow(table.Row{"Unique stations", summary.Stations})
	w.AppendRow(table.Row{"Charge points", summary.Chargepoints})
	w.AppendRow(table.Row{"Files written", len(summary.Manifest)})
	w.AppendRow(table.Row{"Warnings", len(summary.Warnings)})
	if summary.Err != nil {
		w.AppendRow(table.Row{"Error", summary.Err.Error()})
	}
	return w.Render()
}

// readAttachments loads the exported files for the email. A file that
// cannot be read is reported and left out rather than failing the
// notification.
func readAttachments(ctx context.Context, manifest []string) []notify.Attachment {
	var out []notify.Attachment
	for _, path := range manifest {
		content, err := os.ReadFile(path)
		if err != nil {
			slog.WarnContext(ctx, "could not attach exported file", "path", path, "err", err)
			continue
		}
		out = append(out, notify.Attachment{Name: filepath.Base(path), Content: content})
	}
	return out
}
