package notifier

import (
	"html"
	"strings"

	"github.com/samber/mo"
)

const (
	messageHeader      = "<b>✏️ Изменение задачи</b>"
	missingPlaceholder = "(?)"
)

// Change holds everything the notification text is built from.
type Change struct {
	ID     string
	Field  string
	Before mo.Option[string]
	After  string
	Title  string
	Label  string
}

// FormatMessage renders a change as Telegram HTML. Every dynamic value is
// escaped; the title and hashtag lines are left out when blank.
func FormatMessage(c Change) string {
	before := c.Before.OrElse("")
	if before == "" {
		before = missingPlaceholder
	}

	lines := []string{
		messageHeader,
		"ID: " + html.EscapeString(c.ID),
		"Поле: " + html.EscapeString(c.Field),
		html.EscapeString(before) + " → " + html.EscapeString(c.After),
	}
	if strings.TrimSpace(c.Title) != "" {
		lines = append(lines, "Задача: "+html.EscapeString(c.Title))
	}
	if c.Label != "" {
		lines = append(lines, "#"+html.EscapeString(c.Label))
	}
	return strings.Join(lines, "\n")
}

// FirstLabel returns the trimmed first comma-separated segment of a Labels cell.
func FirstLabel(labels string) string {
	first, _, _ := strings.Cut(labels, ",")
	return strings.TrimSpace(first)
}
