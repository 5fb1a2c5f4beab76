package core

import (
	"github.com/pkg/errors"
)

var (
	ErrUnknown              = errors.New("unknown")
	ErrEventAlreadyListened = errors.New("listener already registered for event")
	ErrEventNotListened     = errors.New("listener not registered for event")
	ErrClockNotStarted      = errors.New("clock not started")
)
