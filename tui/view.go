package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"vcompress/batch"
	"vcompress/encoder"
)

// Color palette
var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Violet
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan
	colorSuccess   = lipgloss.Color("#10B981") // Emerald
	colorError     = lipgloss.Color("#EF4444") // Red
	colorWarning   = lipgloss.Color("#F59E0B") // Amber
	colorMuted     = lipgloss.Color("#6B7280") // Gray
	colorText      = lipgloss.Color("#F9FAFB") // White
	colorTextDim   = lipgloss.Color("#9CA3AF") // Light gray
	colorBorder    = lipgloss.Color("#374151") // Dark gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText).
			Background(colorPrimary).
			Padding(0, 2).
			MarginBottom(1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2).
			MarginTop(1)

	statLabelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(10)

	statValueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	statUnitStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	fileBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 2).
			MarginTop(1)

	fileLabelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(8)

	filePathStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	logBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			MarginTop(1)

	percentLowStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	percentMidStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true)

	percentHighStyle = lipgloss.NewStyle().
				Foreground(colorSuccess).
				Bold(true)
)

// formatETADisplay handles unavailable ETA gracefully
func formatETADisplay(eta time.Duration, available bool) string {
	if !available || eta < 0 {
		return "—"
	}
	return FormatDuration(eta)
}

// formatPercentage shows "..." until a determinate reading arrives
func formatPercentage(s encoder.ProgressSample, has bool) string {
	if !has || s.Indeterminate {
		return "..."
	}
	pct := s.Percent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return fmt.Sprintf("%.1f%%", pct)
}

// getPercentageStyle returns appropriate style based on progress
func getPercentageStyle(pct float64) lipgloss.Style {
	if pct < 33 {
		return percentLowStyle
	} else if pct < 66 {
		return percentMidStyle
	}
	return percentHighStyle
}

// formatSizeDisplay handles sizes the filesystem did not report
func formatSizeDisplay(size int64) string {
	if size <= 0 {
		return "—"
	}
	return humanize.IBytes(uint64(size))
}

// formatRatio renders output size relative to input, e.g. "42.0% of original"
func formatRatio(f batch.FileResult) string {
	ratio, ok := f.SizeRatio()
	if !ok {
		return "—"
	}
	return fmt.Sprintf("%.1f%% of original", ratio)
}

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	title := titleStyle.Render(" ⚡ Video Compressor ")
	b.WriteString(title + "\n")

	switch m.State {
	case StateIdle:
		b.WriteString(m.renderIdleView())

	case StateEncoding:
		b.WriteString(m.renderEncodingView())

	case StateDone:
		b.WriteString(m.renderDoneView())

	case StateError:
		b.WriteString(m.renderErrorView())
	}

	help := "  [L] Toggle logs  •  [Q] Quit"
	if m.State == StateEncoding {
		help = "  [L] Toggle logs  •  [Q] Cancel batch"
		if m.Quitting {
			help = "  Cancelling...  •  [Q] Quit now"
		}
	}
	b.WriteString("\n" + helpStyle.Render(help) + "\n")

	return b.String()
}

func (m Model) renderIdleView() string {
	return "\n  " + m.Spinner.View() + statValueStyle.Render(" Starting batch...") + "\n"
}

func (m Model) renderEncodingView() string {
	var b strings.Builder

	b.WriteString("\n")
	header := fmt.Sprintf("  File %d of %d", m.Index+1, m.Total)
	if m.InputFile == "" {
		header = "  Preparing..."
	}
	b.WriteString(sectionHeaderStyle.Render(header) + "\n\n")

	// Progress bar - clamp to valid range
	percentage := m.Sample.Percent / 100
	if percentage > 1 {
		percentage = 1
	}
	if percentage < 0 {
		percentage = 0
	}
	if !m.HasSample || m.Sample.Indeterminate {
		// Just a sliver so the bar shows the encoder is alive
		percentage = 0.01
	}

	progressBar := m.Progress.ViewAs(percentage)
	pctStr := formatPercentage(m.Sample, m.HasSample)
	pctStyled := getPercentageStyle(m.Sample.Percent).Render(pctStr)
	if !m.HasSample || m.Sample.Indeterminate {
		pctStyled = m.Spinner.View() + " " + pctStyled
	}
	b.WriteString("  " + progressBar + "  " + pctStyled + "\n")

	b.WriteString(statsBoxStyle.Render(m.buildStatsGrid()))
	b.WriteString("\n")

	b.WriteString(fileBoxStyle.Render(m.buildFilesSection()))

	if m.ShowLogs {
		b.WriteString("\n")
		b.WriteString(sectionHeaderStyle.Render("  Activity") + "\n")
		b.WriteString(logBoxStyle.Render(m.LogViewport.View()))
	}

	return b.String()
}

func (m Model) buildStatsGrid() string {
	var lines []string

	fileElapsed := time.Duration(0)
	if !m.FileStart.IsZero() {
		fileElapsed = time.Since(m.FileStart).Round(time.Second)
	}
	batchElapsed := time.Duration(0)
	if !m.StartTime.IsZero() {
		batchElapsed = time.Since(m.StartTime).Round(time.Second)
	}

	line1 := lipgloss.JoinHorizontal(lipgloss.Top,
		statLabelStyle.Render("Preset"),
		statValueStyle.Render(m.Request.Preset.Title),
		statUnitStyle.Render(" "+m.Request.Preset.TargetBitrate),
	)
	lines = append(lines, line1)

	line2 := lipgloss.JoinHorizontal(lipgloss.Top,
		statLabelStyle.Render("Elapsed"),
		statValueStyle.Render(FormatDuration(fileElapsed)),
		lipgloss.NewStyle().Width(12).Render(""),
		statLabelStyle.Render("ETA"),
		statValueStyle.Render(formatETADisplay(m.Sample.ETA, m.HasSample && m.Sample.ETAAvailable)),
	)
	lines = append(lines, line2)

	var ok, failed int
	for _, f := range m.Finished {
		switch f.Outcome {
		case batch.OutcomeSucceeded:
			ok++
		case batch.OutcomeFailed:
			failed++
		}
	}
	line3 := lipgloss.JoinHorizontal(lipgloss.Top,
		statLabelStyle.Render("Batch"),
		statValueStyle.Render(FormatDuration(batchElapsed)),
		lipgloss.NewStyle().Width(12).Render(""),
		statLabelStyle.Render("Done"),
		successStyle.Render(fmt.Sprintf("%d ✓", ok)),
		statUnitStyle.Render("  "),
		errorStyle.Render(fmt.Sprintf("%d ✗", failed)),
	)
	lines = append(lines, line3)

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) buildFilesSection() string {
	maxPathLen := m.Width - 16
	if maxPathLen < 20 {
		maxPathLen = 60
	}

	inputDisplay := truncatePath(m.InputFile, maxPathLen)
	outputDisplay := truncatePath(m.OutputFile, maxPathLen)

	line1 := fileLabelStyle.Render("Input") + filePathStyle.Render(inputDisplay)
	line2 := fileLabelStyle.Render("Output") + filePathStyle.Render(outputDisplay)

	return line1 + "\n" + line2
}

func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Show beginning and end
	if maxLen < 20 {
		return path[:maxLen-3] + "..."
	}
	half := (maxLen - 5) / 2
	return path[:half] + " ... " + path[len(path)-half:]
}

func (m Model) renderDoneView() string {
	var b strings.Builder

	b.WriteString("\n")
	res := m.Result
	if res == nil {
		res = &batch.Result{Files: m.Finished}
	}

	switch {
	case res.Failed() == 0 && res.Skipped() == 0:
		b.WriteString(successStyle.Render("  ✓ Batch Complete!") + "\n")
	case res.Skipped() > 0:
		b.WriteString(warningStyle.Render("  ⊘ Batch Cancelled") + "\n")
	default:
		b.WriteString(errorStyle.Render("  ✗ Batch Finished With Failures") + "\n")
	}

	var lines []string
	maxPathLen := m.Width - 40
	if maxPathLen < 20 {
		maxPathLen = 40
	}
	for _, f := range res.Files {
		name := truncatePath(filepath.Base(f.InputPath), maxPathLen)
		var detail string
		switch f.Outcome {
		case batch.OutcomeSucceeded:
			detail = successStyle.Render(outcomeIcon(f.Outcome)) + " " +
				statValueStyle.Render(name) + statUnitStyle.Render(fmt.Sprintf("  %s → %s  %s  %s",
				formatSizeDisplay(f.InputSize), formatSizeDisplay(f.OutputSize), formatRatio(f), FormatDuration(f.Elapsed.Round(time.Second))))
		case batch.OutcomeFailed:
			reason := "failed"
			if f.Err != nil {
				reason = f.Err.Error()
			}
			detail = errorStyle.Render(outcomeIcon(f.Outcome)) + " " +
				statValueStyle.Render(name) + "  " + lipgloss.NewStyle().Foreground(colorError).Render(truncatePath(reason, maxPathLen))
		default:
			detail = warningStyle.Render(outcomeIcon(f.Outcome)) + " " +
				statValueStyle.Render(name) + statUnitStyle.Render("  skipped")
		}
		lines = append(lines, detail)
	}

	summary := fmt.Sprintf("%d succeeded, %d failed, %d skipped in %s",
		res.Succeeded(), res.Failed(), res.Skipped(), FormatDuration(res.Elapsed.Round(time.Second)))
	lines = append(lines, "", statLabelStyle.Render("Total")+statValueStyle.Render(summary))

	b.WriteString(statsBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))

	if m.ShowLogs && m.LogViewport.TotalLineCount() > 0 {
		b.WriteString("\n")
		b.WriteString(sectionHeaderStyle.Render("  Activity") + "\n")
		b.WriteString(logBoxStyle.Render(m.LogViewport.View()))
	}

	return b.String()
}

func (m Model) renderErrorView() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(errorStyle.Render("  ✗ Batch Not Started") + "\n\n")

	errBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorError).
		Padding(0, 2).
		Foreground(colorError).
		Render(m.ErrorMessage)

	b.WriteString(errBox + "\n")
	return b.String()
}

// FormatDuration renders d as M:SS or H:MM:SS, and "—" for negative values.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "—"
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
