// Package report renders self-contained HTML reports for scenario runs:
// one page per run plus a master index across a suite.
package report

import (
	"fmt"
	"html/template"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/zai-protocol/zai-sim/internal/output"
)

const chartWidth, chartHeight = 960, 240

type chart struct {
	Title  string
	Width  int
	Height int
	Path   string
	Min    float64
	Max    float64
}

type reportData struct {
	Name    string
	RunID   string
	Blocks  int
	Verdict output.Verdict
	Summary output.Summary
	Charts  []chart
}

var tmplFuncs = template.FuncMap{
	"pct": func(f float64) string { return fmt.Sprintf("%.4f%%", f*100) },
	"verdictClass": func(o output.Outcome) string {
		switch o {
		case output.OutcomePass:
			return "PASS"
		case output.OutcomeSoftFail:
			return "SOFT"
		default:
			return "HARD"
		}
	},
}

var pageTmpl = template.Must(template.New("report").Funcs(tmplFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>zai-sim — {{.Name}}</title>
<style>
body { font-family: -apple-system, sans-serif; margin: 2rem; color: #222; }
h1 { font-size: 1.4rem; }
table { border-collapse: collapse; margin: 1rem 0; }
td, th { border: 1px solid #ccc; padding: 0.3rem 0.8rem; text-align: right; }
th { background: #f4f4f4; }
.verdict-PASS { color: #0a7d28; font-weight: bold; }
.verdict-SOFT { color: #b88207; font-weight: bold; }
.verdict-HARD { color: #b81d07; font-weight: bold; }
svg { background: #fafafa; border: 1px solid #ddd; margin-bottom: 1rem; }
.caption { font-size: 0.85rem; color: #666; }
</style>
</head>
<body>
<h1>{{.Name}} <span class="verdict-{{verdictClass .Verdict.Overall}}">{{.Verdict.Overall}}</span></h1>
<p class="caption">run {{.RunID}} · {{.Blocks}} blocks</p>
<table>
<tr><th>Mean peg</th><th>Max peg</th><th>Final peg</th><th>Liquidations</th><th>Bad debt</th><th>Volatility</th><th>Halt blocks</th><th>Breaker trips</th></tr>
<tr>
<td>{{pct .Summary.MeanPegDeviation}}</td>
<td>{{pct .Summary.MaxPegDeviation}}</td>
<td>{{pct .Summary.FinalPegDeviation}}</td>
<td>{{.Summary.TotalLiquidations}}</td>
<td>{{printf "%.2f" .Summary.TotalBadDebt}}</td>
<td>{{printf "%.4f" .Summary.Volatility}}</td>
<td>{{.Summary.HaltBlocks}}</td>
<td>{{.Summary.BreakerTriggers}}</td>
</tr>
</table>
{{range .Verdict.Reasons}}<p class="caption">⚠ {{.}}</p>{{end}}
{{range .Charts}}
<h2>{{.Title}}</h2>
<svg viewBox="0 0 {{.Width}} {{.Height}}" width="{{.Width}}" height="{{.Height}}">
<polyline fill="none" stroke="#1f77b4" stroke-width="1" points="{{.Path}}"/>
</svg>
<p class="caption">range [{{printf "%.6g" .Min}}, {{printf "%.6g" .Max}}]</p>
{{end}}
</body>
</html>
`))

// Generate renders a single run's HTML report.
func Generate(metrics []output.Record, name, runID string, verdict output.Verdict, summary output.Summary) (string, error) {
	data := reportData{
		Name:    name,
		RunID:   runID,
		Blocks:  len(metrics),
		Verdict: verdict,
		Summary: summary,
		Charts: []chart{
			buildChart("ZAI market price", metrics, func(m output.Record) float64 { return m.AMMSpotPrice }),
			buildChart("Peg deviation", metrics, func(m output.Record) float64 {
				return (m.AMMSpotPrice - m.RedemptionPrice) / m.RedemptionPrice
			}),
			buildChart("External ZEC price", metrics, func(m output.Record) float64 { return m.ExternalPrice }),
			buildChart("Total debt", metrics, func(m output.Record) float64 { return m.TotalDebt }),
		},
	}

	var sb strings.Builder
	if err := pageTmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return sb.String(), nil
}

// buildChart projects one metrics field into an SVG polyline.
func buildChart(title string, metrics []output.Record, f func(output.Record) float64) chart {
	c := chart{Title: title, Width: chartWidth, Height: chartHeight}
	if len(metrics) == 0 {
		return c
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, m := range metrics {
		v := f(m)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	c.Min, c.Max = lo, hi

	var pts strings.Builder
	for i, m := range metrics {
		x := 0.0
		if len(metrics) > 1 {
			x = float64(i) / float64(len(metrics)-1) * float64(chartWidth)
		}
		y := float64(chartHeight) - (f(m)-lo)/(hi-lo)*float64(chartHeight)
		fmt.Fprintf(&pts, "%.1f,%.1f ", x, y)
	}
	c.Path = strings.TrimSpace(pts.String())
	return c
}

// Save writes a rendered report, creating parent directories as needed.
func Save(html, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
