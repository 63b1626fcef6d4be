package server

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

var tablePage = template.Must(template.New("table").Funcs(template.FuncMap{
	"num": func(v float64) string { return fmt.Sprintf("%g", v) },
	"fixed": func(v float64) string {
		return fmt.Sprintf("%.4f", v)
	},
	"pct": func(v float64) string {
		return fmt.Sprintf("%.2f%%", v*100)
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Peirce's criterion</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; }
th, td { padding: 0.35rem 0.9rem; text-align: right; border-bottom: 1px solid #ddd; }
th { background: #f4f4f4; }
td.err { color: #b00; text-align: left; }
</style>
</head>
<body>
<h1>Peirce's criterion</h1>
<p>Reject an observation when |x - mean| / stddev exceeds R.</p>
<table>
<tr><th>N</th><th>n</th><th>m</th><th>R</th><th>R&sup2;</th><th>P(|z| &gt; R)</th><th>iterations</th><th>outcome</th></tr>
{{range .Rows}}
{{if .Error}}
<tr><td>{{num .Observations}}</td><td>{{num .Outliers}}</td><td>{{num .Unknowns}}</td><td class="err" colspan="5">{{.Error}}</td></tr>
{{else}}
<tr><td>{{num .Observations}}</td><td>{{num .Outliers}}</td><td>{{num .Unknowns}}</td><td>{{fixed .R}}</td><td>{{fixed .X2}}</td><td>{{pct .TailProbability}}</td><td>{{.Iterations}}</td><td>{{.Outcome}}</td></tr>
{{end}}
{{end}}
</table>
</body>
</html>
`))

func (s *Server) handleTablePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	table, err := s.solver().BuildTable(r.Context(), s.cache(), s.Config().Table.Spec())
	if err != nil {
		slog.Error("failed to build table", "err", err)
		http.Error(w, "Failed to build table", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tablePage.Execute(&buf, table); err != nil {
		slog.Error("failed to render table page", "err", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
