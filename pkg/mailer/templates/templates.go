// Package templates renders the transactional emails sent by the worker.
package templates

import (
	"bytes"
	"fmt"
	htmpl "html/template"
	"time"
)

type rendered struct {
	subject string
	text    string
	html    *htmpl.Template
}

var registry = map[string]rendered{
	"verify_email": {
		subject: "Verify your email address",
		text:    "Hi {{.Name}}, confirm your email address: {{.VerifyURL}} (link expires {{.ExpiresAtText}})",
		html: htmpl.Must(htmpl.New("verify_email").Parse(`<html><body>
<p>Hi {{.Name}},</p>
<p>Confirm your email address by opening the link below.</p>
<p><a href="{{.VerifyURL}}">Verify email</a></p>
<p>The link expires {{.ExpiresAtText}}. If you did not create this account you can ignore this message.</p>
</body></html>`)),
	},
	"forgot_password": {
		subject: "Reset your password",
		text:    "Hi {{.Name}}, reset your password: {{.ResetURL}} (link expires {{.ExpiresAtText}})",
		html: htmpl.Must(htmpl.New("forgot_password").Parse(`<html><body>
<p>Hi {{.Name}},</p>
<p>We received a request to reset your password.</p>
<p><a href="{{.ResetURL}}">Reset password</a></p>
<p>The link expires {{.ExpiresAtText}}. If you did not request this, no action is needed.</p>
</body></html>`)),
	},
}

// Render produces subject, plaintext and HTML bodies for a named template.
func Render(name string, data map[string]any) (subject, text, html string, err error) {
	tpl, ok := registry[name]
	if !ok {
		return "", "", "", fmt.Errorf("unknown email template %q", name)
	}
	data = withExpiresText(data)

	var htmlBuf bytes.Buffer
	if err := tpl.html.Execute(&htmlBuf, data); err != nil {
		return "", "", "", err
	}
	txt, err := executeText(tpl.text, data)
	if err != nil {
		return "", "", "", err
	}
	return tpl.subject, txt, htmlBuf.String(), nil
}

func executeText(src string, data map[string]any) (string, error) {
	t, err := htmpl.New("text").Parse(src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// withExpiresText derives a human-readable ExpiresAtText from ExpiresAt,
// accepting both time.Time (direct enqueue) and RFC3339 strings (JSON round
// trip through the queue).
func withExpiresText(data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["ExpiresAtText"]; ok {
		return data
	}
	switch v := data["ExpiresAt"].(type) {
	case time.Time:
		data["ExpiresAtText"] = v.UTC().Format("02 January 2006, 15:04 MST")
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			data["ExpiresAtText"] = t.UTC().Format("02 January 2006, 15:04 MST")
		} else {
			data["ExpiresAtText"] = v
		}
	default:
		data["ExpiresAtText"] = "soon"
	}
	return data
}
