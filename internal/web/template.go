package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/rotary-encoder/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stepOrNone": func(s string) string {
		if s == "" {
			return "NONE"
		}
		return s
	},
	"asserted": func(v int) string {
		if v == 1 {
			return "asserted"
		}
		return "released"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Rotary Encoder{{if .Config.Name}} {{.Config.Name}}{{end}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.forward { color: green; font-weight: bold; }
.backward { color: #06c; font-weight: bold; }
.none { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Rotary Encoder{{if .Config.Name}} <small>{{.Config.Name}}</small>{{end}}</h1>

<h2>Encoder</h2>
<table>
<tr><th>Last step</th><td id="last-step" class="{{if eq (stepOrNone (printf "%s" .LastStep)) "FORWARD"}}forward{{else if eq (stepOrNone (printf "%s" .LastStep)) "BACKWARD"}}backward{{else}}none{{end}}">{{stepOrNone (printf "%s" .LastStep)}}</td></tr>
{{if not .LastStepAt.IsZero}}<tr><th>At</th><td>{{.LastStepAt.UTC.Format "2006-01-02T15:04:05.000Z"}}</td></tr>{{end}}
<tr><th>Armed</th><td>{{if .Encoder.Armed}}yes{{else}}no{{end}}</td></tr>
<tr><th>CLK</th><td>{{asserted .Encoder.ClockLevel}}</td></tr>
<tr><th>DT</th><td>{{asserted .Encoder.DataLevel}}</td></tr>
<tr><th>Read errors</th><td>{{.Encoder.ReadErrors}}</td></tr>
</table>

<h2>Step Counts</h2>
<table>
<tr><th>Forward</th><td>{{.Counts.Forward}}</td></tr>
<tr><th>Backward</th><td>{{.Counts.Backward}}</td></tr>
<tr><th>Missed</th><td>{{.Missed}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if or .MQTTBuffered .MQTTDropped}}<tr><th>Offline buffer</th><td>{{.MQTTBuffered}} queued, {{.MQTTDropped}} dropped</td></tr>
{{end}}{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
{{if not .Host.SampledAt.IsZero}}<tr><th>Host</th><td>cpu {{printf "%.1f" .Host.CPUPercent}}%, mem {{printf "%.1f" .Host.MemUsedPercent}}%</td></tr>
{{end}}<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Pins</th><td>{{.Config.Chip}} CLK={{.Config.ClockPin}} DT={{.Config.DataPin}}</td></tr>
<tr><th>Polarity</th><td>{{if .Config.ActiveLow}}active-low{{else}}active-high{{end}}, {{.Config.Bias}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() and Missed() methods but the template reads fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Missed int
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Missed:   snap.Missed(),
	}
	indexTmpl.Execute(w, data)
}
