package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies engine failures. Every failure surfaces to the caller
// verbatim; nothing here retries.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindInvalidState
	KindValidation
	KindConflict
)

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Msg: msg} }
func InvalidState(msg string) error { return &Error{Kind: KindInvalidState, Msg: msg} }
func Validation(msg string) error   { return &Error{Kind: KindValidation, Msg: msg} }
func Conflict(msg string) error     { return &Error{Kind: KindConflict, Msg: msg} }

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func Is(err error, kind Kind) bool { return KindOf(err) == kind }

// HTTPError maps a service error onto a fiber error for handlers.
func HTTPError(err error) error {
	switch KindOf(err) {
	case KindNotFound:
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case KindInvalidState, KindConflict:
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case KindValidation:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
