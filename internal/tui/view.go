package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/netpulse/internal/model"
	"github.com/tinytelemetry/netpulse/internal/monitor"
	"github.com/tinytelemetry/netpulse/internal/route"
	"github.com/tinytelemetry/netpulse/internal/series"
)

const (
	sidebarWidth  = 28
	minBodyHeight = 12
)

var panelGroups = []struct {
	group string
	title string
}{
	{series.GroupMachine, "Machine"},
	{series.GroupSpeedtest, "Speed test"},
	{series.GroupMeet, "Meet quality"},
	{series.GroupRoute, "Route"},
}

// View implements Page.
func (m *DashboardModel) View(width, height int) string {
	if width <= 0 {
		width = m.width
	}
	if height <= 0 {
		height = m.height
	}
	if width <= 0 || height <= 0 {
		width, height = 120, 40
	}

	header := m.renderHeader(width)
	footer := m.help.View(m.keys)
	bodyHeight := max(height-lipgloss.Height(header)-lipgloss.Height(footer), minBodyHeight)

	sidebar := m.renderSidebar(sidebarWidth, bodyHeight)
	main := m.renderMain(max(width-sidebarWidth, 40), bodyHeight)
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *DashboardModel) renderHeader(width int) string {
	st := m.state
	left := fmt.Sprintf("netpulse  %s  %s", st.Date, st.FileName)
	if st.Summary.Valid {
		left += fmt.Sprintf("  %d/%d samples", st.View.Len(), st.Summary.Samples)
		if st.Summary.Rejected > 0 {
			left += fmt.Sprintf(" (%d rejected)", st.Summary.Rejected)
		}
	}
	header := headerStyle.Width(width).Render(left)
	return lipgloss.JoinVertical(lipgloss.Left, header, m.renderStatus())
}

func (m *DashboardModel) renderStatus() string {
	st := m.state.Status
	var style lipgloss.Style
	switch st.Kind {
	case monitor.StatusReady:
		style = statusStyles["ok"]
	case monitor.StatusEmptyFilter, monitor.StatusEmptyDataset:
		style = statusStyles["warning"]
	case monitor.StatusFetchError:
		style = statusStyles["error"]
	default:
		style = statusStyles["muted"]
	}

	msg := st.Message
	if st.Err != nil && st.Kind == monitor.StatusFetchError {
		msg += ": " + st.Err.Error()
	}
	line := style.Render(msg)
	if m.loading {
		line = m.spinner.View() + " " + line
	}
	if !st.At.IsZero() {
		line += helpStyle.Render("  " + st.At.Format("15:04:05"))
	}
	return line
}

func (m *DashboardModel) renderSidebar(width, height int) string {
	hostsHeight := max(height-6, 4)

	var lines []string
	all := m.state.Criteria.Hosts.IsAll()
	title := chartTitleStyle.Render("Hosts")
	if all {
		title += helpStyle.Render(" (all)")
	}
	lines = append(lines, title)

	if len(m.state.Hosts) == 0 {
		lines = append(lines, helpStyle.Render("no hosts loaded"))
	}
	start := 0
	visible := hostsHeight - 3
	if m.hostCursor >= visible {
		start = m.hostCursor - visible + 1
	}
	for i := start; i < len(m.state.Hosts) && i < start+visible; i++ {
		host := m.state.Hosts[i]
		mark := "[ ]"
		if all || m.state.Criteria.Hosts.Contains(host) {
			mark = "[x]"
		}
		line := truncate(fmt.Sprintf("%s %s", mark, host), width-4)
		if m.section == SectionHosts && i == m.hostCursor {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	hostsStyle := sectionStyle
	if m.section == SectionHosts {
		hostsStyle = activeSectionStyle
	}
	hosts := hostsStyle.Width(width - 2).Height(hostsHeight - 2).Render(strings.Join(lines, "\n"))

	return lipgloss.JoinVertical(lipgloss.Left, hosts, m.renderWindow(width))
}

func (m *DashboardModel) renderWindow(width int) string {
	w := m.state.Criteria.Window
	var content string
	style := sectionStyle
	if m.section == SectionWindow {
		style = activeSectionStyle
		content = fmt.Sprintf("%s\nfrom %s\nto   %s",
			chartTitleStyle.Render("Time window"), m.windowInputs[0].View(), m.windowInputs[1].View())
		if m.windowErr != "" {
			content += "\n" + statusStyles["error"].Render(truncate(m.windowErr, width-4))
		}
	} else {
		content = fmt.Sprintf("%s\n%s - %s", chartTitleStyle.Render("Time window"), w.Start, w.End)
	}
	return style.Width(width - 2).Render(content)
}

func (m *DashboardModel) renderMain(width, height int) string {
	detailsHeight := max(height/3, 8)
	gridHeight := max(height-detailsHeight, 2*(minChartHeight+3))
	panelWidth := width / 2
	panelHeight := gridHeight / 2

	times := make([]time.Time, len(m.state.View.Samples))
	for i, s := range m.state.View.Samples {
		times[i] = s.Timestamp
	}

	panels := make([]string, len(panelGroups))
	for i, pg := range panelGroups {
		innerW, innerH := panelWidth-4, panelHeight-3
		var content string
		cs, ok := m.state.Series[pg.group]
		switch {
		case !ok && pg.group == series.GroupRoute && m.state.RouteErr != nil:
			content = helpStyle.Render(m.state.RouteErr.Error())
		case !ok:
			content = helpStyle.Render("No data available")
		case pg.group == series.GroupRoute:
			content = renderRouteChart(cs, m.state.Route, innerW, innerH)
		default:
			content = renderTimeChart(cs, times, innerW, innerH)
		}
		title := chartTitleStyle.Render(pg.title)
		panels[i] = sectionStyle.Width(panelWidth - 2).Height(panelHeight - 2).
			Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	grid := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, panels[0], panels[1]),
		lipgloss.JoinHorizontal(lipgloss.Top, panels[2], panels[3]),
	)
	return lipgloss.JoinVertical(lipgloss.Left, grid, m.renderDetails(width, detailsHeight))
}

// renderDetails shows the selected sample, including hops that timed out.
func (m *DashboardModel) renderDetails(width, height int) string {
	style := sectionStyle
	if m.section == SectionSamples {
		style = activeSectionStyle
	}

	s, ok := m.selectedSample()
	if !ok {
		return style.Width(width - 2).Render(chartTitleStyle.Render("Event details") + "\n" +
			helpStyle.Render("No samples match the current filter"))
	}

	title := fmt.Sprintf("Event details  %d/%d", clamp(m.sampleCursor, 0, m.state.View.Len()-1)+1, m.state.View.Len())
	lines := []string{
		chartTitleStyle.Render(title),
		fmt.Sprintf("%s  %s", selectedStyle.Render(s.Hostname), s.Timestamp.Local().Format("2006-01-02 15:04:05")),
		describeLocation(s),
		fmt.Sprintf("CPU %s%%  RAM %s%%  Disk %s%%  Load %d",
			formatValue(s.CPUPct), formatValue(s.RAMPct), formatValue(s.DiskPct), s.LoadScore),
		fmt.Sprintf("Down %s Mbps  Up %s Mbps  Latency %s ms",
			formatValue(s.DownloadMbps), formatValue(s.UploadMbps), formatValue(s.SpeedtestLatencyMs)),
		fmt.Sprintf("Meet health %d  Jitter %s ms  Latency %s ms  Loss %s%%",
			s.HealthScore, formatValue(s.JitterMs), formatValue(s.AvgLatencyMs), formatValue(s.LossPct)),
	}

	room := height - len(lines) - 2
	for i, d := range route.Describe(s) {
		if i >= room {
			break
		}
		line := d.String()
		if d.Timeout {
			line = statusStyles["warning"].Render(line)
		}
		lines = append(lines, line)
	}
	content := lipgloss.NewStyle().MaxWidth(width - 4).Render(strings.Join(lines, "\n"))
	return style.Width(width - 2).Render(content)
}

func describeLocation(s model.Sample) string {
	var parts []string
	for _, v := range []string{s.City, s.PublicIP, s.Provider} {
		if strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return helpStyle.Render("location unknown")
	}
	return strings.Join(parts, "  ")
}

// truncate cuts plain text s to width cells.
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
