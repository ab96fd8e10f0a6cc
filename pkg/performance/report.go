// Text reports for portfolio and single-asset analysis
package performance

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// ============================================================================
// REPORT GENERATION
// ============================================================================

// ReportInput bundles everything rendered by GenerateReport. Either the
// portfolio section, the asset section or both may be set.
type ReportInput struct {
	Title     string
	Assets    []string
	Weights   []float64
	Policy    string
	Portfolio *PortfolioMetrics

	Ticker    string
	BuyHold   *Summary
	Strategy  *Summary
	LatestRSI float64
}

// GenerateReport generates a human-readable performance report
func GenerateReport(in ReportInput) string {
	var b strings.Builder
	rule := strings.Repeat("=", 80)

	title := in.Title
	if title == "" {
		title = "PERFORMANCE REPORT"
	}
	fmt.Fprintf(&b, "\n%s\n%s\n%s\n", rule, strings.ToUpper(title), rule)

	if m := in.Portfolio; m != nil {
		section(&b, "PORTFOLIO")
		fmt.Fprintf(&b, "Period:            %s to %s (%d periods)\n",
			m.StartDate.Format("2006-01-02"), m.EndDate.Format("2006-01-02"), m.Periods)
		if in.Policy != "" {
			fmt.Fprintf(&b, "Rebalancing:       %s\n", in.Policy)
		}
		width := labelWidth(in.Assets)
		for i, a := range in.Assets {
			w := 0.0
			if i < len(in.Weights) {
				w = in.Weights[i]
			}
			fmt.Fprintf(&b, "  %-*s %8s\n", width, a, formatPercent(w))
		}

		section(&b, "RETURNS & RISK")
		fmt.Fprintf(&b, "Annualized Return: %s\n", formatPercent(m.AnnualizedReturn))
		fmt.Fprintf(&b, "Volatility:        %s\n", formatPercent(m.AnnualizedVolatility))
		fmt.Fprintf(&b, "Sharpe Ratio:      %s\n", formatFloat(m.SharpeRatio))
		fmt.Fprintf(&b, "Max Drawdown:      %s\n", formatPercent(m.MaxDrawdown))
		fmt.Fprintf(&b, "Final Value:       %s\n", formatFloat(m.FinalValue))

		if m.Correlation != nil && len(m.Correlation.Labels) > 0 {
			section(&b, "CORRELATION")
			writeMatrix(&b, m.Correlation)
		}
	}

	if in.BuyHold != nil || in.Strategy != nil {
		heading := "ASSET"
		if in.Ticker != "" {
			heading = "ASSET " + in.Ticker
		}
		section(&b, heading)
		fmt.Fprintf(&b, "%-18s %14s %14s\n", "", "Buy & Hold", "MA Crossover")
		rows := []struct {
			label string
			get   func(*Summary) string
		}{
			{"Total Return", func(s *Summary) string { return formatPercent(s.TotalReturn) }},
			{"Annualized Return", func(s *Summary) string { return formatPercent(s.AnnualizedReturn) }},
			{"Volatility", func(s *Summary) string { return formatPercent(s.Volatility) }},
			{"Sharpe Ratio", func(s *Summary) string { return formatFloat(s.SharpeRatio) }},
			{"Max Drawdown", func(s *Summary) string { return formatPercent(s.MaxDrawdown) }},
		}
		for _, row := range rows {
			fmt.Fprintf(&b, "%-18s %14s %14s\n", row.label, cell(in.BuyHold, row.get), cell(in.Strategy, row.get))
		}
		if !IsUndefined(in.LatestRSI) && in.LatestRSI != 0 {
			fmt.Fprintf(&b, "Latest RSI:        %s\n", formatFloat(in.LatestRSI))
		}
	}

	fmt.Fprintf(&b, "\n%s\n", rule)
	return b.String()
}

// TopCorrelations lists the n most correlated distinct pairs, strongest first
func TopCorrelations(m *Matrix, n int) []string {
	type pair struct {
		a, b string
		c    float64
	}
	var pairs []pair
	for i := range m.Labels {
		for j := i + 1; j < len(m.Labels); j++ {
			if IsUndefined(m.Values[i][j]) {
				continue
			}
			pairs = append(pairs, pair{m.Labels[i], m.Labels[j], m.Values[i][j]})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].c > pairs[j].c })
	if n > 0 && len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = fmt.Sprintf("%s/%s %.2f", p.a, p.b, p.c)
	}
	return out
}

func section(b *strings.Builder, name string) {
	fmt.Fprintf(b, "\n%s\n%s\n", name, strings.Repeat("-", len(name)))
}

func writeMatrix(b *strings.Builder, m *Matrix) {
	fmt.Fprintf(b, "%-10s", "")
	for _, l := range m.Labels {
		fmt.Fprintf(b, " %9s", truncate(l, 9))
	}
	b.WriteString("\n")
	for i, l := range m.Labels {
		fmt.Fprintf(b, "%-10s", truncate(l, 10))
		for _, v := range m.Values[i] {
			fmt.Fprintf(b, " %9s", formatFloat(v))
		}
		b.WriteString("\n")
	}
}

// labelWidth is the longest label, at least 16 columns
func labelWidth(labels []string) int {
	width := 16
	for _, l := range labels {
		if n := utf8.RuneCountInString(l); n > width {
			width = n
		}
	}
	return width
}

func cell(s *Summary, get func(*Summary) string) string {
	if s == nil {
		return "-"
	}
	return get(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func formatFloat(f float64) string {
	if IsUndefined(f) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", f)
}

func formatPercent(f float64) string {
	if IsUndefined(f) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", f*100)
}
