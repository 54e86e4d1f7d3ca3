package commands

const (
	// Request validation.
	ErrCodeBadRequest   = "E_BAD_REQUEST"
	ErrCodeNoPermission = "E_NO_PERMISSION"

	// Registry state.
	ErrCodeNotFound = "E_NOT_FOUND"
	ErrCodeConflict = "E_CONFLICT"

	// Confirmation outcomes that leave the registry untouched.
	ErrCodeCancelled = "E_CANCELLED"
	ErrCodeExpired   = "E_EXPIRED"

	ErrCodeInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrCodeBadRequest:   {},
	ErrCodeNoPermission: {},
	ErrCodeNotFound:     {},
	ErrCodeConflict:     {},
	ErrCodeCancelled:    {},
	ErrCodeExpired:      {},
	ErrCodeInternal:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
