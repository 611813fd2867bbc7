package eventbus

import "errors"

var (
	ErrMissingEventID   = errors.New("eventbus: envelope has no event id")
	ErrMissingEventType = errors.New("eventbus: envelope has no event type")
	ErrEncode           = errors.New("eventbus: failed to encode envelope")
	ErrDecode           = errors.New("eventbus: failed to decode envelope")
	ErrBusClosed        = errors.New("eventbus: bus is closed")
	ErrNilHandler       = errors.New("eventbus: handler is required")
	ErrPublishFailed    = errors.New("eventbus: publish failed")
	ErrSubscribeFailed  = errors.New("eventbus: subscribe failed")
	ErrArchiveFailed    = errors.New("eventbus: archive failed")
)
