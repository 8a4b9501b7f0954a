package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/Veraticus/sharing-ingest/internal/model"
)

// RenderArtifact summarises a finished ingestion for the terminal.
func RenderArtifact(a *model.Artifact, elapsed time.Duration) string {
	if a == nil {
		return FormatWarning("No artifact produced")
	}

	var b strings.Builder
	b.WriteString(FormatSuccess(a.Message) + "\n\n")
	writeField(&b, "Source", a.SourceFile)
	writeField(&b, "Train", fmt.Sprintf("%s (%s rows)", a.TrainFilePath, humanize.Comma(int64(a.TrainRows))))
	writeField(&b, "Test", fmt.Sprintf("%s (%s rows)", a.TestFilePath, humanize.Comma(int64(a.TestRows))))
	if total := a.TotalRows(); total > 0 {
		share := float64(a.TestRows) / float64(total) * 100
		writeField(&b, "Test share", strconv.FormatFloat(share, 'f', 1, 64)+"%")
	}
	if elapsed > 0 {
		writeField(&b, "Elapsed", elapsed.Round(time.Millisecond).String())
	}

	return renderBox(ChartIcon+" Ingestion artifact", strings.TrimRight(b.String(), "\n"))
}

func writeField(b *strings.Builder, label, value string) {
	b.WriteString(LabelStyle.Render(fmt.Sprintf("%-11s", label+":")))
	b.WriteString(" " + value + "\n")
}

// RenderHistory formats past runs as a titled table, newest first.
func RenderHistory(runs []model.Run, now time.Time) string {
	if len(runs) == 0 {
		return FormatInfo("No ingestion runs recorded yet")
	}

	headers := []string{"ID", "Started", "Status", "Duration", "Rows", "Detail"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.ID),
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			string(r.Status),
			formatDuration(r),
			formatRows(r),
			detail(r),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	b.WriteString(FormatTitle(fmt.Sprintf("Ingestion history (%d runs)", len(runs))))
	b.WriteString("\n\n")
	headerCells := make([]string, len(headers))
	for i, h := range headers {
		headerCells[i] = HistoryCellStyle.Width(widths[i] + 2).Render(h)
	}
	b.WriteString(HistoryHeaderStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, headerCells...)))
	b.WriteString("\n")

	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			style := HistoryCellStyle.Width(widths[j] + 2)
			if j == 2 {
				style = style.Inherit(StatusStyle(runs[i].Status))
			}
			cells[j] = style.Render(cell)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(r model.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.Duration().Round(time.Millisecond).String()
}

func formatRows(r model.Run) string {
	if r.Artifact == nil {
		return "-"
	}
	return humanize.Comma(int64(r.Artifact.TrainRows)) + "/" + humanize.Comma(int64(r.Artifact.TestRows))
}

func detail(r model.Run) string {
	switch {
	case r.Error != "":
		return truncate(r.Error, 60)
	case r.Artifact != nil:
		return r.Artifact.SourceFile
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
