package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sheet_notify/internal/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// summaryRow fills ID, Title, Status, Assignee and Due.
func summaryRow(id, status, assignee, due string) []interface{} {
	return []interface{}{id, "Task " + id, "", status, assignee, "", due, ""}
}

func records(t *testing.T, rows ...[]interface{}) []sheets.RowRecord {
	t.Helper()
	wb := sheets.NewMemoryWorkbook()
	wb.SetRows("tasks", append([][]interface{}{taskHeader()}, rows...))
	recs, err := sheets.ReadTaskRecords(context.Background(), wb, "tasks")
	require.NoError(t, err)
	return recs
}

func TestSummarizeCountsOpenTasksPerAssignee(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	// 2025-09-05 01:00 in Moscow is still 2025-09-04 in UTC.
	now := time.Date(2025, 9, 4, 22, 0, 0, 0, time.UTC).In(moscow)

	s := Summarize(records(t,
		summaryRow("1", "open", "bob", "2025-09-04"),
		summaryRow("2", "Done", "bob", "2025-01-01"),
		summaryRow("3", "in progress", "Alice", "2025-09-05"),
		summaryRow("4", "open", "alice", "soon"),
		summaryRow("5", "open", "", ""),
		summaryRow("6", "open", "bob", "2025-09-01"),
	), now)

	assert.Equal(t, []AssigneeCount{
		{Assignee: "bob", Open: 2},
		{Assignee: "(не назначено)", Open: 1},
		{Assignee: "Alice", Open: 1},
		{Assignee: "alice", Open: 1},
	}, s.Assignees)
	assert.Equal(t, 2, s.Overdue)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, time.Now())
	assert.Empty(t, s.Assignees)
	assert.Zero(t, s.Overdue)
	assert.Equal(t, "<b>Ежедневная сводка задач</b>\nПросрочено: <b>0</b>", FormatSummary(s))
}

func TestFormatSummaryEscapesAssignees(t *testing.T) {
	text := FormatSummary(Summary{
		Assignees: []AssigneeCount{{Assignee: "<dev>", Open: 3}},
		Overdue:   1,
	})
	assert.Equal(t, strings.Join([]string{
		"<b>Ежедневная сводка задач</b>",
		"&lt;dev&gt;: 3",
		"Просрочено: <b>1</b>",
	}, "\n"), text)
}

func TestSendSummaryUsesBoundThread(t *testing.T) {
	n, wb, sender := newFixture(t,
		summaryRow("1", "open", "bob", "2000-01-01"),
		summaryRow("2", "done", "bob", "2000-01-01"),
	)
	wb.SetRows("threads", [][]interface{}{{"Label", "ThreadID", "CreatedAt"}, {"summary", "7", ""}})

	res := n.SendSummary(context.Background(), "summary", time.Date(2025, 9, 5, 9, 0, 0, 0, time.UTC))
	require.Equal(t, OutcomeSent, res.Outcome, res.Err)
	assert.Equal(t, "summary", res.Reason)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, int64(7), msg.ThreadID.MustGet())
	assert.Equal(t, "-100123", msg.ChatID)
	assert.Equal(t, "<b>Ежедневная сводка задач</b>\nbob: 1\nПросрочено: <b>1</b>", msg.Text)
	assert.Equal(t, msg, res.Message.MustGet())
}

func TestSendSummaryWithoutBindingGoesToChat(t *testing.T) {
	n, _, sender := newFixture(t, summaryRow("1", "open", "bob", ""))

	res := n.SendSummary(context.Background(), "summary", time.Now())
	require.Equal(t, OutcomeSent, res.Outcome, res.Err)
	require.Len(t, sender.sent, 1)
	assert.True(t, sender.sent[0].ThreadID.IsAbsent())
}

func TestSendSummaryFailures(t *testing.T) {
	n, _, sender := newFixture(t, summaryRow("1", "open", "bob", ""))
	sender.err = errors.New("telegram down")

	res := n.SendSummary(context.Background(), "", time.Now())
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "send", res.Reason)
	assert.True(t, res.Message.IsPresent())

	wb := sheets.NewMemoryWorkbook()
	wb.SetRows("tasks", [][]interface{}{{"ID"}})
	n = New(wb, sheets.NewThreadDirectory(wb, "threads"), &recordingSender{}, "1", "tasks")
	res = n.SendSummary(context.Background(), "summary", time.Now())
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "read tasks", res.Reason)
	assert.True(t, errors.Is(res.Err, sheets.ErrInvalidHeader))
}
