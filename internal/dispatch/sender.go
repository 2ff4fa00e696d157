package dispatch

import (
	"context"
	"errors"
)

// Sender delivers one rendered message to a chat. Implementations wrap
// structural failures (the chat blocked or deleted the bot) in
// PermanentError so the dispatcher can stop retrying and disable the
// user; every other failure is treated as transient.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// PermanentError marks a delivery failure that no amount of retrying
// can fix, e.g. the recipient has unlinked the bot.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent delivery failure: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsPermanent reports whether err carries a PermanentError anywhere in
// its chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
