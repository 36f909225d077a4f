// Package notifier turns one spreadsheet edit into one Telegram message.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sheet_notify/internal/metrics"
	"sheet_notify/internal/notifications"
	"sheet_notify/internal/sheets"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/mo"
)

// LabelsHeader is the task column whose first label picks the thread.
const LabelsHeader = "Labels"

// Sender delivers one message. *notifications.Client implements it.
type Sender interface {
	SendMessage(ctx context.Context, msg notifications.OutboundMessage) error
}

type Notifier struct {
	wb        sheets.Workbook
	threads   *sheets.ThreadDirectory
	sender    Sender
	chatID    string
	dataTable string

	// one edit at a time, so the threads sheet has a single creator
	mu sync.Mutex
}

// New wires a Notifier. The thread directory's OnCreate hook is pointed at
// the metrics counter unless the caller already set one.
func New(wb sheets.Workbook, threads *sheets.ThreadDirectory, sender Sender, chatID, dataTable string) *Notifier {
	if threads.OnCreate == nil {
		threads.OnCreate = metrics.IncThreadSheetCreated
	}
	return &Notifier{
		wb:        wb,
		threads:   threads,
		sender:    sender,
		chatID:    chatID,
		dataTable: dataTable,
	}
}

// HandleEdit processes a single edit event. It never panics and never
// returns an error to the caller; everything that went wrong is logged and
// reported in the Result. Delivery is attempted at most once.
func (n *Notifier) HandleEdit(ctx context.Context, ev EditEvent) (res Result) {
	n.mu.Lock()
	defer n.mu.Unlock()

	logger := log.With().
		Str("sheet", ev.Sheet).
		Int("row", ev.Row).
		Int("column", ev.Column).
		Logger()

	start := time.Now()
	composed := mo.None[notifications.OutboundMessage]()
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Outcome: OutcomeFailed,
				Reason:  "panic",
				Message: composed,
				Err:     fmt.Errorf("panic while handling edit: %v", r),
			}
		}
		n.record(logger, res, time.Since(start))
	}()

	msg, field, early, ok := n.compose(ctx, logger, ev)
	if !ok {
		return early
	}
	composed = mo.Some(msg)

	if err := n.sender.SendMessage(ctx, msg); err != nil {
		fail := failed("send", err)
		fail.Message = composed
		return fail
	}
	return Result{Outcome: OutcomeSent, Reason: field, Message: composed}
}

// compose builds the notification for ev and the edited column's header.
// When ok is false the edit ends with the returned Result instead.
func (n *Notifier) compose(ctx context.Context, logger zerolog.Logger, ev EditEvent) (msg notifications.OutboundMessage, field string, res Result, ok bool) {
	if ev.Sheet != n.dataTable {
		return msg, "", Result{Outcome: OutcomeSkipped, Reason: "other sheet"}, false
	}
	if ev.Row == 1 {
		return msg, "", Result{Outcome: OutcomeSkipped, Reason: "header row"}, false
	}
	if ev.Row < 1 || ev.Column < 1 {
		return msg, "", failed("invalid range", &InputError{Reason: fmt.Sprintf("row %d column %d is not a cell", ev.Row, ev.Column)}), false
	}

	rec, err := sheets.ReadRowRecord(ctx, n.wb, n.dataTable, ev.Row)
	if err != nil {
		if errors.Is(err, sheets.ErrInvalidHeader) {
			return msg, "", failed("invalid header", &InputError{Reason: "task header row", Err: err}), false
		}
		return msg, "", failed("read row", err), false
	}

	field, found := rec.Header(ev.Column)
	if !found {
		return msg, "", failed("column out of range", &InputError{
			Reason: fmt.Sprintf("column %d is outside A:%s", ev.Column, sheets.ColumnLetter(sheets.TaskColumns)),
		}), false
	}

	label := FirstLabel(rec.Get(LabelsHeader))
	threadID := mo.None[int64]()
	if label != "" {
		threadID, err = n.threads.Lookup(ctx, label)
		if err != nil {
			return msg, "", failed("thread lookup", err), false
		}
	}

	after := ev.Value.OrElse("")
	if after == "" {
		after = rec.Value(ev.Column)
	}

	msg = notifications.OutboundMessage{
		ChatID: n.chatID,
		Text: FormatMessage(Change{
			ID:     rec.Get("ID"),
			Field:  field,
			Before: ev.OldValue,
			After:  after,
			Title:  rec.Get("Title"),
			Label:  label,
		}),
		ThreadID:  threadID,
		ParseMode: notifications.ParseModeHTML,
	}

	logEvent := logger.Debug().Str("field", field).Str("label", label)
	if id, ok := threadID.Get(); ok {
		logEvent = logEvent.Int64("thread_id", id)
	}
	logEvent.Msg("Notification composed")

	return msg, field, Result{}, true
}

func failed(reason string, err error) Result {
	return Result{Outcome: OutcomeFailed, Reason: reason, Err: err}
}

func (n *Notifier) record(logger zerolog.Logger, res Result, elapsed time.Duration) {
	metrics.IncEdit(string(res.Outcome))
	metrics.ObserveHandleDuration(elapsed.Seconds())

	switch res.Outcome {
	case OutcomeSkipped:
		logger.Debug().Str("reason", res.Reason).Msg("Edit ignored")
	case OutcomeSent:
		metrics.IncNotificationSent()
		logger.Info().
			Str("field", res.Reason).
			Dur("elapsed", elapsed).
			Msg("Notification sent")
	case OutcomeFailed:
		retryable := res.Retryable()
		metrics.IncNotificationFailed(retryable)
		logger.Error().
			Err(res.Err).
			Str("reason", res.Reason).
			Bool("retryable", retryable).
			Msg("Edit notification failed")
	}
}
