package domain

import "errors"

var (
	// ErrChannelNotFound is returned when no channel row exists for an id
	ErrChannelNotFound = errors.New("channel not found")

	// ErrWebhookNotFound is returned when no webhook row exists for an id
	ErrWebhookNotFound = errors.New("webhook not found")

	// ErrWatchgroupNotFound is returned when no watchgroup row exists for an id
	ErrWatchgroupNotFound = errors.New("watchgroup not found")

	// ErrAlreadyExists is returned on unique constraint violations for
	// administrative creates (duplicate webhook URL, duplicate group name)
	ErrAlreadyExists = errors.New("record already exists")

	// ErrAlreadyDelivered is returned by RecordDelivery when a delivery row
	// for the (source message, webhook) pair already exists. Callers treat
	// it as detect-and-skip: the uniqueness constraint, not application
	// locking, arbitrates racing recorders.
	ErrAlreadyDelivered = errors.New("message already delivered to webhook")

	// ErrGroupedMessage is returned by the single-message path when a
	// message declares album membership; the album path owns those.
	ErrGroupedMessage = errors.New("message belongs to an album")

	// ErrMediaTooLarge is returned when an attachment exceeds the
	// configured size cap and is skipped.
	ErrMediaTooLarge = errors.New("media exceeds configured size limit")

	// ErrDatabaseOperation wraps unexpected persistence failures
	ErrDatabaseOperation = errors.New("database operation failed")
)
