package notifier

import (
	"cmp"
	"context"
	"fmt"
	"html"
	"slices"
	"strings"
	"time"

	"sheet_notify/internal/metrics"
	"sheet_notify/internal/notifications"
	"sheet_notify/internal/sheets"

	"github.com/rs/zerolog/log"
	"github.com/samber/mo"
)

const (
	summaryHeader   = "<b>Ежедневная сводка задач</b>"
	unassignedLabel = "(не назначено)"
	overdueLabel    = "Просрочено: "
	doneStatus      = "done"
	dueDateLayout   = "2006-01-02"
	summaryReason   = "summary"
)

// AssigneeCount is the number of open tasks held by one assignee.
type AssigneeCount struct {
	Assignee string
	Open     int
}

// Summary is the daily digest of open tasks.
type Summary struct {
	Assignees []AssigneeCount
	Overdue   int
}

// Summarize counts tasks whose Status is not done, per Assignee, and how
// many of them are due before the calendar day of now. Rows with an
// unparseable Due date are counted as open but never as overdue.
func Summarize(tasks []sheets.RowRecord, now time.Time) Summary {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	counts := make(map[string]int)
	var order []string
	var s Summary
	for _, t := range tasks {
		if strings.EqualFold(strings.TrimSpace(t.Get("Status")), doneStatus) {
			continue
		}

		assignee := strings.TrimSpace(t.Get("Assignee"))
		if assignee == "" {
			assignee = unassignedLabel
		}
		if _, seen := counts[assignee]; !seen {
			order = append(order, assignee)
		}
		counts[assignee]++

		due := strings.TrimSpace(t.Get("Due"))
		if due == "" {
			continue
		}
		d, err := time.ParseInLocation(dueDateLayout, due, now.Location())
		if err != nil {
			log.Warn().Err(err).Int("row", t.Index).Str("due", due).Msg("Cannot parse due date")
			continue
		}
		if d.Before(today) {
			s.Overdue++
		}
	}

	for _, a := range order {
		s.Assignees = append(s.Assignees, AssigneeCount{Assignee: a, Open: counts[a]})
	}
	slices.SortStableFunc(s.Assignees, func(a, b AssigneeCount) int {
		if a.Open != b.Open {
			return cmp.Compare(b.Open, a.Open)
		}
		return cmp.Compare(strings.ToLower(a.Assignee), strings.ToLower(b.Assignee))
	})
	return s
}

// FormatSummary renders s as Telegram HTML, busiest assignee first.
func FormatSummary(s Summary) string {
	lines := []string{summaryHeader}
	for _, a := range s.Assignees {
		lines = append(lines, fmt.Sprintf("%s: %d", html.EscapeString(a.Assignee), a.Open))
	}
	lines = append(lines, fmt.Sprintf("%s<b>%d</b>", overdueLabel, s.Overdue))
	return strings.Join(lines, "\n")
}

// SendSummary posts the daily digest of the task table to the thread bound
// to label, or to the chat itself when label has no usable binding. now
// decides which tasks are overdue and should carry the reporting time zone.
func (n *Notifier) SendSummary(ctx context.Context, label string, now time.Time) Result {
	n.mu.Lock()
	defer n.mu.Unlock()

	logger := log.With().Str("sheet", n.dataTable).Str("label", label).Logger()

	tasks, err := sheets.ReadTaskRecords(ctx, n.wb, n.dataTable)
	if err != nil {
		logger.Error().Err(err).Msg("Summary not sent")
		return failed("read tasks", err)
	}

	threadID := mo.None[int64]()
	if label != "" {
		threadID, err = n.threads.Lookup(ctx, label)
		if err != nil {
			logger.Error().Err(err).Msg("Summary not sent")
			return failed("thread lookup", err)
		}
	}
	if threadID.IsAbsent() {
		logger.Warn().Msg("No thread for summary, sending to the chat")
	}

	summary := Summarize(tasks, now)
	msg := notifications.OutboundMessage{
		ChatID:    n.chatID,
		Text:      FormatSummary(summary),
		ThreadID:  threadID,
		ParseMode: notifications.ParseModeHTML,
	}

	if err := n.sender.SendMessage(ctx, msg); err != nil {
		res := failed("send", err)
		res.Message = mo.Some(msg)
		retryable := res.Retryable()
		metrics.IncNotificationFailed(retryable)
		logger.Error().Err(err).Bool("retryable", retryable).Msg("Summary not sent")
		return res
	}

	metrics.IncNotificationSent()
	logger.Info().
		Int("tasks", len(tasks)).
		Int("assignees", len(summary.Assignees)).
		Int("overdue", summary.Overdue).
		Msg("Summary sent")
	return Result{Outcome: OutcomeSent, Reason: summaryReason, Message: mo.Some(msg)}
}
