package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/mpb-switch/internal/logic"
	"github.com/sweeney/mpb-switch/internal/status"
)

// formatUptime renders d as "2d 3h 4m 5s", leaving out leading zero units.
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	parts := []struct {
		n    int64
		unit string
	}{
		{secs / 86400, "d"},
		{secs / 3600 % 24, "h"},
		{secs / 60 % 60, "m"},
		{secs % 60, "s"},
	}
	var out []string
	for i, p := range parts {
		if len(out) == 0 && p.n == 0 && i < len(parts)-1 {
			continue
		}
		out = append(out, fmt.Sprintf("%d%s", p.n, p.unit))
	}
	return strings.Join(out, " ")
}

// flags lists the raised status flags of b for the status table.
func flags(b status.Button) string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(!b.Status.Enabled, "disabled")
	add(b.Status.Voided, "voided")
	add(b.Status.Latched, "latched")
	add(b.Status.Warning, "warning")
	add(b.Status.Pilot, "pilot")
	add(b.Status.Second, "second")
	add(b.Pressed, "pressed")
	if b.Kind == logic.KindSlider {
		out = append(out, fmt.Sprintf("value=%d", b.Status.Value))
	}
	return strings.Join(out, " ")
}

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"flags":  flags,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>MPB Switch</title>
<style>
body { font: 14px/1.4 monospace; max-width: 860px; margin: 1.5em auto; padding: 0 1em; }
table { border-collapse: collapse; width: 100%; margin-bottom: 1.5em; }
th, td { text-align: left; padding: 3px 10px; border-bottom: 1px solid #e4e4e4; }
tr.is-on td.out { color: #1a7f37; font-weight: bold; }
tr.is-off td.out { color: #999; }
.flags { color: #b35900; }
.err { color: #c00; }
</style>
</head>
<body>
<h1>MPB Switch{{if .Paused}} <small class="flags">sampling paused</small>{{end}}</h1>

<table>
<tr><th>Button</th><th>Pin</th><th>Kind</th><th>Output</th><th>Phase</th><th>Flags</th><th>Left</th><th>On/Off/Voids</th></tr>
{{range .Buttons}}<tr id="button-{{.Name}}" class="{{if .Status.On}}is-on{{else}}is-off{{end}}">
<td>{{.Name}}</td><td>{{.Pin}}</td><td>{{.Kind}}</td>
<td class="out">{{if .Status.On}}ON{{else}}OFF{{end}}</td>
<td>{{.Phase}}</td>
<td class="flags">{{flags .}}</td>
<td>{{with .RemainingMs}}{{.}}ms{{end}}</td>
<td>{{.Counts.On}}/{{.Counts.Off}}/{{.Counts.Voids}}</td>
</tr>
{{with .LastError}}<tr><td></td><td colspan="7" class="err">{{.}}</td></tr>
{{end}}{{end}}</table>

<table>
<tr><th>MQTT</th><td>{{if .MQTTConnected}}connected{{else}}<span class="err">disconnected</span>{{end}} ({{.Config.Broker}})</td></tr>
<tr><th>GPIO driver</th><td>{{.Config.Driver}}, poll {{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{with .Config.HeartbeatMs}}{{.}}ms{{else}}off{{end}}</td></tr>
<tr><th>Listening</th><td>{{.Config.HTTPAddr}}</td></tr>
<tr><th>Up</th><td>{{uptime .Uptime}} since {{.StartTime.UTC.Format "2006-01-02 15:04:05Z"}}</td></tr>
</table>

<p><a href="/index.json">index.json</a></p>
</body>
</html>
`

// page is the template data. Uptime is computed once so the template
// reads a value rather than calling the Snapshot method.
type page struct {
	status.Snapshot
	Uptime time.Duration
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, page{Snapshot: snap, Uptime: snap.Uptime()})
}
