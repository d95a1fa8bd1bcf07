package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/krishiconnect/backend/internal/logger"
	"github.com/krishiconnect/backend/internal/pkg/apperror"
	"github.com/krishiconnect/backend/internal/secretstore"
)

// DedupSender wraps an EmailSender with a per-recipient duplicate-send
// window. A marker key is written after each successful send; while the
// marker lives, further sends for the same event are rejected.
type DedupSender struct {
	sender EmailSender
	store  secretstore.Store
}

// NewDedupSender creates the wrapper.
func NewDedupSender(sender EmailSender, store secretstore.Store) *DedupSender {
	return &DedupSender{sender: sender, store: store}
}

// SendOnce sends the message unless a live marker exists for the same
// event, recipient, and identifier. If the marker store cannot be
// reached the send proceeds; losing dedup is preferable to losing mail.
func (d *DedupSender) SendOnce(ctx context.Context, to, subject, htmlBody, textBody,
	eventType, identifier string, window time.Duration) error {

	key := fmt.Sprintf("email:sent:%s:%s:%s", eventType, to, identifier)

	_, err := d.store.Get(ctx, key)
	switch {
	case err == nil:
		return apperror.New(apperror.ErrCodeThrottled, "An email was sent recently, please wait before retrying")
	case errors.Is(err, secretstore.ErrNotFound):
		// no live marker, proceed
	case errors.Is(err, secretstore.ErrUnavailable):
		logger.Log.WithError(err).Warn("dedup marker store unavailable, sending anyway")
	default:
		logger.Log.WithError(err).Warn("dedup marker lookup failed, sending anyway")
	}

	if err := d.sender.Send(ctx, to, subject, htmlBody, textBody); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeSendFailure, "Failed to send email")
	}

	if err := d.store.Set(ctx, key, "1", window); err != nil {
		logger.Log.WithError(err).Warn("failed to write dedup marker")
	}
	return nil
}
