// Package render formats capsule notifications. Rendering is pure: the
// same capsule and resolved text always produce byte-identical output.
package render

import (
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/capsulemail/capsuled/internal/model"
)

// Rendered is the notifier-ready form of one capsule.
type Rendered struct {
	Subject  string
	TextBody string
	HTMLBody string
}

const (
	subjectPrefix   = "Time Capsule: "
	fallbackSubject = "Your Message from the Past"
	fallbackHeading = "Your Time Capsule"
	timeLayout      = "January 2, 2006 15:04 UTC"
)

type viewData struct {
	Heading      string
	Occasion     string
	ScheduledFor string
	CreatedOn    string
	Message      string
}

var htmlTmpl = template.Must(template.New("email").Parse(`<html>
<head>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; }
.header { background: #4a5db0; color: white; padding: 30px; text-align: center; }
.content { background: #f9f9f9; padding: 30px; }
.message-box { background: white; padding: 20px; border-left: 4px solid #4a5db0; margin: 20px 0; }
.footer { text-align: center; margin-top: 20px; color: #666; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
<div class="header">
<h1>Time Capsule Delivery</h1>
<p>A message from your past has arrived!</p>
</div>
<div class="content">
<h2>{{.Heading}}</h2>
<p><strong>Scheduled for:</strong> {{.ScheduledFor}}</p>
<p><strong>Created on:</strong> {{.CreatedOn}}</p>
{{if .Occasion}}<p><strong>Occasion:</strong> {{.Occasion}}</p>
{{end}}<div class="message-box">
<h3>Your Message:</h3>
<p style="white-space: pre-wrap;">{{.Message}}</p>
</div>
<p><em>This time capsule was created to be delivered at this exact moment.</em></p>
</div>
<div class="footer">
<p>Delivered by Time Capsule</p>
<p>This is an automated delivery - please do not reply to this email.</p>
</div>
</div>
</body>
</html>
`))

var textTmpl = texttemplate.Must(texttemplate.New("email").Parse(`TIME CAPSULE DELIVERY

{{.Heading}}

Scheduled for: {{.ScheduledFor}}
Created on: {{.CreatedOn}}
{{if .Occasion}}Occasion: {{.Occasion}}
{{end}}
Your Message:
{{.Message}}

This time capsule was created to be delivered at this exact moment.

Delivered by Time Capsule
`))

// Render builds subject and both bodies from the capsule's display fields
// and the already-resolved message text.
func Render(c model.Capsule, resolvedText string) Rendered {
	subject := subjectPrefix + fallbackSubject
	heading := fallbackHeading
	if t := strings.TrimSpace(c.Title); t != "" {
		subject = subjectPrefix + t
		heading = t
	}

	data := viewData{
		Heading:      heading,
		Occasion:     strings.TrimSpace(c.Occasion),
		ScheduledFor: formatTime(c.ScheduledAt),
		CreatedOn:    formatTime(c.CreatedAt),
		Message:      resolvedText,
	}

	var htmlBuf strings.Builder
	// the only template error source is the data type, fixed at compile time
	_ = htmlTmpl.Execute(&htmlBuf, data)

	var textBuf strings.Builder
	_ = textTmpl.Execute(&textBuf, data)

	return Rendered{
		Subject:  subject,
		TextBody: textBuf.String(),
		HTMLBody: htmlBuf.String(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format(timeLayout)
}
