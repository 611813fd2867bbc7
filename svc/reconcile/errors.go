package reconcile

import "errors"

var ErrNilEvent = errors.New("reconcile: event is nil")
