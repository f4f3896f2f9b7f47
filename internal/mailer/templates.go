package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; color: #111827;">
  <h2>Welcome to Progress, {{.Username}}!</h2>
  <p>Your verification code is:</p>
  <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">{{.Code}}</p>
  <p style="color: #6b7280;">The code expires in 24 hours.</p>
</body>
</html>`))

var testTmpl = template.Must(template.New("test").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; color: #111827;">
  <h2>Hi {{.Username}},</h2>
  <p>This is a test email from Progress. If you received it, your email notifications are working.</p>
  <p><a href="{{.AppURL}}">Open Progress</a></p>
</body>
</html>`))

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// VerificationEmail renders the account verification message.
func VerificationEmail(to, username, code string) (Message, error) {
	html, err := render(verificationTmpl, struct{ Username, Code string }{username, code})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Your Progress verification code", HTML: html}, nil
}

// TestEmail renders the message sent by the notification test.
func TestEmail(to, username, appURL string) (Message, error) {
	html, err := render(testTmpl, struct{ Username, AppURL string }{username, appURL})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Progress test email", HTML: html}, nil
}
