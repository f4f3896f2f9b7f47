package reminder

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"time"

	"progress/internal/mailer"
	"progress/internal/models"
)

//go:embed templates/reminder.html
var reminderHTML string

var reminderTmpl = template.Must(template.New("reminder").Parse(reminderHTML))

// Urgency tiers by days remaining.
const (
	ColorUrgent  = "#dc2626"
	ColorWarning = "#f59e0b"
	ColorInfo    = "#2563eb"
)

// UrgencyColor maps days remaining to the tier color.
func UrgencyColor(daysLeft int) string {
	switch {
	case daysLeft <= 1:
		return ColorUrgent
	case daysLeft <= 3:
		return ColorWarning
	default:
		return ColorInfo
	}
}

func dueLabel(daysLeft int) string {
	switch daysLeft {
	case 0:
		return "Due today"
	case 1:
		return "Due tomorrow"
	default:
		return fmt.Sprintf("Due in %d days", daysLeft)
	}
}

type goalLine struct {
	Title       string
	Description string
	DueDate     string
	DueLabel    string
	Color       string
	Progress    int
}

type emailData struct {
	Username string
	Count    int
	Goals    []goalLine
	AppURL   string
	Year     int
}

// Subject is the reminder subject line for n goals.
func Subject(n int) string {
	return fmt.Sprintf("Goal reminder: %d goal(s) due soon", n)
}

// RenderEmail builds the digest for one recipient. Goals keep the order they
// were given in.
func RenderEmail(r models.ReminderRecipient, goals []models.Goal, today time.Time, appURL string) (mailer.Message, error) {
	data := emailData{
		Username: r.Username,
		Count:    len(goals),
		AppURL:   appURL,
		Year:     today.Year(),
	}
	for _, g := range goals {
		target := startOfDay(*g.TargetDate, today.Location())
		daysLeft := int(target.Sub(today).Hours()+12) / 24
		data.Goals = append(data.Goals, goalLine{
			Title:       g.Title,
			Description: g.Description,
			DueDate:     target.Format("Monday, January 2"),
			DueLabel:    dueLabel(daysLeft),
			Color:       UrgencyColor(daysLeft),
			Progress:    g.Progress,
		})
	}

	var buf bytes.Buffer
	if err := reminderTmpl.Execute(&buf, data); err != nil {
		return mailer.Message{}, fmt.Errorf("failed to execute reminder template: %w", err)
	}
	return mailer.Message{To: r.Email, Subject: Subject(len(goals)), HTML: buf.String()}, nil
}
