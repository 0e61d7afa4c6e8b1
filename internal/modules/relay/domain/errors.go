package domain

import "errors"

// Domain errors for the relay module.
var (
	// ErrInvalidPayload is returned when a relay payload is not valid JSON.
	ErrInvalidPayload = errors.New("relay payload must be valid JSON")

	// ErrEmptyReply is returned when a reply has no text, embed or links.
	ErrEmptyReply = errors.New("reply has no content")

	// ErrReplyTooLong is returned when reply text exceeds the message limit.
	ErrReplyTooLong = errors.New("reply text exceeds 2000 characters")

	// ErrTooManyLinks is returned when a reply carries more link buttons than fit in one row.
	ErrTooManyLinks = errors.New("reply has more than 5 links")

	// ErrInvalidLink is returned when a link has no label or is not an absolute http(s) URL.
	ErrInvalidLink = errors.New("invalid reply link")

	// ErrEmptyCommandName is returned when a descriptor has no name.
	ErrEmptyCommandName = errors.New("command name is empty")

	// ErrDuplicateCommand is returned when two descriptors share a name.
	ErrDuplicateCommand = errors.New("duplicate command name")

	// ErrRelayDisabled is returned when no relay destination is configured.
	ErrRelayDisabled = errors.New("relay destination not configured")

	// ErrNoChannel is returned when a channel send has no target channel.
	ErrNoChannel = errors.New("no target channel configured")

	// ErrMissingIdentity is returned when an event lacks the user it refers to.
	ErrMissingIdentity = errors.New("event has no user identity")

	// ErrAbandoned is recorded for events dropped because their producer gave up.
	ErrAbandoned = errors.New("event abandoned before dispatch")
)
