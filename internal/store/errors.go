package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Op names a Remote Store operation.
type Op string

const (
	OpList   Op = "list"
	OpGet    Op = "get"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpLogin  Op = "login"
	OpLogout Op = "logout"

	OpResetRequest  Op = "reset_request"
	OpVerifyReset   Op = "verify_reset"
	OpResetPassword Op = "reset_password"
)

// Error is the typed failure returned by every Client operation. Message is
// human-readable: the response body's "message" when the store supplied
// one, otherwise a per-operation fallback.
type Error struct {
	Op      Op
	Entity  string
	Status  int   // HTTP status, 0 for transport failures
	Message string
	Err     error // underlying transport/decoding error, if any
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail returns a diagnostic string including the operation and status.
func (e *Error) Detail() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Op, e.Entity, e.Status, e.Message)
}

// IsNotFound reports whether err is a store 404.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsConflict reports whether err is a store 409.
func IsConflict(err error) bool {
	return statusOf(err) == http.StatusConflict
}

// IsUnauthorized reports whether the store rejected the bearer token.
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

func statusOf(err error) int {
	var se *Error
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// fallbackMessage is used when the store gives no message of its own.
func fallbackMessage(op Op, singular, plural string) string {
	switch op {
	case OpList:
		return "Failed to fetch " + plural
	case OpGet:
		return "Failed to fetch " + singular
	case OpCreate, OpUpdate:
		return "Failed to save " + singular
	case OpDelete:
		return "Failed to delete " + singular
	case OpLogin:
		return "Login failed"
	case OpLogout:
		return "Logout failed"
	case OpResetRequest:
		return "Reset request failed"
	case OpVerifyReset:
		return "Invalid or expired reset token"
	case OpResetPassword:
		return "Password reset failed"
	default:
		return "Request failed"
	}
}
