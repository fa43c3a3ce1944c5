package watchlist

import (
	"errors"
	"fmt"

	"github.com/username/finwatch/src/security/validation"
)

var (
	// ErrValidation is returned for malformed input, before any remote call.
	ErrValidation = fmt.Errorf("watchlist: %w", validation.ErrValidationFailed)
	// ErrUnauthenticated is returned when a remote mutation has no signed-in owner.
	ErrUnauthenticated = errors.New("watchlist: sign in required")
	// ErrNetwork wraps remote store failures and timeouts. The local state
	// has been rolled back when it is returned.
	ErrNetwork = errors.New("watchlist: remote store unavailable")
)
