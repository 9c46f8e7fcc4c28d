package service

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrNotFound   = errors.New("not found")  // 404
	ErrConflict   = errors.New("conflict")   // 409
)

// SuspensionPeriod is fixed for every account. It runs from last_modified.
const SuspensionPeriod = 30 * 24 * time.Hour

// Kind tags the outcome of a login or refresh that did not produce tokens.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidCredentials
	KindAccountNotFound
	KindAccountInactive
	KindAccountSuspended
	KindInvalidPassword
	KindMissingToken
	KindInvalidToken
	KindInvalidAccountID
	KindSessionExpired
	KindTokenIssuance
	KindConfiguration
)

var kindNames = map[Kind]string{
	KindInternal:           "internal",
	KindInvalidCredentials: "invalid_credentials",
	KindAccountNotFound:    "account_not_found",
	KindAccountInactive:    "account_inactive",
	KindAccountSuspended:   "account_suspended",
	KindInvalidPassword:    "invalid_password",
	KindMissingToken:       "missing_token",
	KindInvalidToken:       "invalid_token",
	KindInvalidAccountID:   "invalid_account_id",
	KindSessionExpired:     "session_expired",
	KindTokenIssuance:      "token_issuance",
	KindConfiguration:      "configuration",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var kindMessages = map[Kind]string{
	KindInternal:           "internal server error",
	KindInvalidCredentials: "email and password are required",
	KindAccountNotFound:    "account not found",
	KindAccountInactive:    "account is inactive",
	KindInvalidPassword:    "invalid password",
	KindMissingToken:       "refresh token is required",
	KindInvalidToken:       "invalid refresh token",
	KindInvalidAccountID:   "invalid account id in token",
	KindSessionExpired:     "session expired, please log in again",
	KindTokenIssuance:      "could not issue tokens",
	KindConfiguration:      "token service is not configured",
}

// AuthError is the only error type AuthenticateUser and RefreshSession return.
// Remaining is set for KindAccountSuspended only.
type AuthError struct {
	Kind      Kind
	Remaining time.Duration
	Err       error
}

// Sentinels for errors.Is; matching is by Kind.
var (
	ErrInvalidCredentials = &AuthError{Kind: KindInvalidCredentials}
	ErrAccountNotFound    = &AuthError{Kind: KindAccountNotFound}
	ErrAccountInactive    = &AuthError{Kind: KindAccountInactive}
	ErrAccountSuspended   = &AuthError{Kind: KindAccountSuspended}
	ErrInvalidPassword    = &AuthError{Kind: KindInvalidPassword}
	ErrMissingToken       = &AuthError{Kind: KindMissingToken}
	ErrInvalidToken       = &AuthError{Kind: KindInvalidToken}
	ErrInvalidAccountID   = &AuthError{Kind: KindInvalidAccountID}
	ErrSessionExpired     = &AuthError{Kind: KindSessionExpired}
	ErrTokenIssuance      = &AuthError{Kind: KindTokenIssuance}
	ErrConfiguration      = &AuthError{Kind: KindConfiguration}
	ErrInternal           = &AuthError{Kind: KindInternal}
)

func newAuthError(kind Kind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

func suspended(remaining time.Duration) *AuthError {
	return &AuthError{Kind: KindAccountSuspended, Remaining: remaining}
}

// Message is safe to return to the client.
func (e *AuthError) Message() string {
	if e.Kind == KindAccountSuspended {
		return "account is suspended, try again in " + FormatRemaining(e.Remaining)
	}
	return kindMessages[e.Kind]
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Message() + ": " + e.Err.Error()
	}
	return e.Message()
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// KindOf reports the Kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// FormatRemaining renders d as "N days and M hours", rounding partial hours up
// so a suspension never reports 0 hours while time is left.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(math.Ceil(d.Hours()))
	return fmt.Sprintf("%d days and %d hours", hours/24, hours%24)
}
