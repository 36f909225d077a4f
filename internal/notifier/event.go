package notifier

import (
	"errors"
	"fmt"

	"sheet_notify/internal/notifications"
	"sheet_notify/internal/sheets"

	"github.com/samber/mo"
)

// EditEvent is one cell edit reported by the spreadsheet.
type EditEvent struct {
	Sheet    string
	Row      int
	Column   int
	OldValue mo.Option[string]
	Value    mo.Option[string]
}

type Outcome string

const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
)

// Result describes what HandleEdit did with an event. Message is filled in
// as soon as the notification has been composed, even when delivery fails.
type Result struct {
	Outcome Outcome
	Reason  string
	Message mo.Option[notifications.OutboundMessage]
	Err     error
}

// Retryable reports whether a failed edit could succeed if handled again.
// Input errors never are; Sheets and Telegram transport errors are when
// the backend said so (429, 5xx, network, timeout).
func (r Result) Retryable() bool {
	if r.Outcome != OutcomeFailed || r.Err == nil {
		return false
	}

	var inputErr *InputError
	if errors.As(r.Err, &inputErr) {
		return false
	}

	var notifErr *notifications.NotificationError
	if errors.As(r.Err, &notifErr) {
		return notifErr.IsRetryable()
	}

	return sheets.IsRetryableError(r.Err)
}

// InputError is a problem with the event or the sheet layout. Handling the
// same event again cannot fix it.
type InputError struct {
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Err)
	}
	return "invalid input: " + e.Reason
}

func (e *InputError) Unwrap() error { return e.Err }
