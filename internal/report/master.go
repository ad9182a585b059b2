package report

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/zai-protocol/zai-sim/internal/output"
)

type masterData struct {
	Results []output.ScenarioResult
	Pass    int
	Soft    int
	Hard    int
}

var masterTmpl = template.Must(template.New("master").Funcs(tmplFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>zai-sim — stress suite</title>
<style>
body { font-family: -apple-system, sans-serif; margin: 2rem; color: #222; }
h1 { font-size: 1.4rem; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 0.3rem 0.8rem; text-align: right; }
td:first-child, th:first-child { text-align: left; }
th { background: #f4f4f4; }
.verdict-PASS { color: #0a7d28; font-weight: bold; }
.verdict-SOFT { color: #b88207; font-weight: bold; }
.verdict-HARD { color: #b81d07; font-weight: bold; }
.totals { margin-top: 1rem; font-size: 0.95rem; }
</style>
</head>
<body>
<h1>Stress suite summary</h1>
<table>
<tr><th>Scenario</th><th>Verdict</th><th>Mean peg</th><th>Max peg</th><th>Liqs</th><th>Bad debt</th><th>Volatility</th><th>Halts</th><th>Breakers</th></tr>
{{range .Results}}
<tr>
<td><a href="{{.Name}}.html">{{.Name}}</a></td>
<td class="verdict-{{verdictClass .Overall}}">{{.Overall}}</td>
<td>{{pct .MeanPeg}}</td>
<td>{{pct .MaxPeg}}</td>
<td>{{.Liquidations}}</td>
<td>{{printf "%.2f" .BadDebt}}</td>
<td>{{printf "%.4f" .Volatility}}</td>
<td>{{.HaltBlocks}}</td>
<td>{{.BreakerTriggers}}</td>
</tr>
{{end}}
</table>
<p class="totals">{{.Pass}} PASS / {{.Soft}} SOFT FAIL / {{.Hard}} HARD FAIL out of {{len .Results}} scenarios</p>
</body>
</html>
`))

// GenerateMaster renders the suite-wide index page.
func GenerateMaster(results []output.ScenarioResult) (string, error) {
	data := masterData{Results: results}
	for _, r := range results {
		switch r.Overall {
		case output.OutcomePass:
			data.Pass++
		case output.OutcomeSoftFail:
			data.Soft++
		case output.OutcomeHardFail:
			data.Hard++
		}
	}

	var sb strings.Builder
	if err := masterTmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render master summary: %w", err)
	}
	return sb.String(), nil
}
