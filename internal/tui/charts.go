package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/timeserieslinechart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/netpulse/internal/model"
)

const minChartHeight = 3

// renderTimeChart draws one line chart per axis of cs, stacked vertically. times holds
// the timestamp of each label of cs.
func renderTimeChart(cs model.ChartSeries, times []time.Time, width, height int) string {
	if len(cs.Axes) == 0 || len(times) == 0 || width < 10 {
		return helpStyle.Render("No data available")
	}

	legend := renderLegend(cs)
	chartHeight := (height - lipgloss.Height(legend)) / len(cs.Axes)
	if chartHeight < minChartHeight {
		chartHeight = minChartHeight
	}

	minT, maxT := times[0], times[len(times)-1]
	if !maxT.After(minT) {
		minT, maxT = minT.Add(-time.Minute), maxT.Add(time.Minute)
	}

	parts := []string{legend}
	for _, axis := range cs.Axes {
		chart := timeserieslinechart.New(width, chartHeight,
			timeserieslinechart.WithXLabelFormatter(timeserieslinechart.HourTimeLabelFormatter()),
			timeserieslinechart.WithXYSteps(2, 1),
		)
		chart.SetTimeRange(minT, maxT)
		chart.SetViewTimeRange(minT, maxT)
		chart.SetYRange(axis.Min, axis.Max)
		chart.SetViewYRange(axis.Min, axis.Max)

		for i, metric := range cs.Metrics {
			if metric.AxisID != axis.ID {
				continue
			}
			chart.SetDataSetStyle(metric.Key, lipgloss.NewStyle().Foreground(seriesColor(i)))
			for j, v := range metric.Values {
				if j >= len(times) {
					break
				}
				chart.PushDataSet(metric.Key, timeserieslinechart.TimePoint{Time: times[j], Value: v})
			}
		}
		chart.DrawBrailleAll()
		parts = append(parts, chart.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderLegend lists each metric with its colour, latest value and axis bound.
func renderLegend(cs model.ChartSeries) string {
	items := make([]string, 0, len(cs.Metrics))
	for i, metric := range cs.Metrics {
		last := "-"
		if n := len(metric.Values); n > 0 {
			last = formatValue(metric.Values[n-1])
		}
		bound := ""
		if axis, ok := cs.Axis(metric.AxisID); ok {
			bound = "/" + formatValue(axis.Max)
		}
		style := lipgloss.NewStyle().Foreground(seriesColor(i))
		items = append(items, style.Render(fmt.Sprintf("%c %s", runes.FullBlock, metric.Label))+
			helpStyle.Render(fmt.Sprintf(" %s%s", last, bound)))
	}
	return strings.Join(items, "  ")
}

// renderRouteChart draws hop latencies as bars, the destination hop highlighted.
func renderRouteChart(cs model.ChartSeries, hops []model.RouteHop, width, height int) string {
	if len(hops) == 0 || width < 10 {
		return helpStyle.Render("No route data")
	}

	maxValue := 0.0
	if axis, ok := cs.Axis("latency"); ok {
		maxValue = axis.Max
	}
	chartHeight := max(height-1, minChartHeight)

	data := make([]barchart.BarData, 0, len(hops))
	for _, hop := range hops {
		style := hopStyle
		if hop.Destination {
			style = destinationStyle
		}
		data = append(data, barchart.BarData{
			Label:  strconv.Itoa(hop.Index),
			Values: []barchart.BarValue{{Name: hop.IP, Value: hop.LatencyMs, Style: style}},
		})
	}

	barWidth := max(1, min(4, (width-len(hops))/len(hops)))
	bc := barchart.New(width, chartHeight,
		barchart.WithDataSet(data),
		barchart.WithMaxValue(maxValue),
		barchart.WithBarWidth(barWidth),
		barchart.WithBarGap(1),
	)
	bc.Draw()

	last := hops[len(hops)-1]
	summary := fmt.Sprintf("%d hops, last %s %s ms", len(hops), last.IP, formatValue(last.LatencyMs))
	if last.Destination {
		summary += " " + statusStyles["ok"].Render("(destination)")
	}
	return lipgloss.JoinVertical(lipgloss.Left, helpStyle.Render(summary), bc.View())
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
