package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pdcc/internal/common"
	"github.com/dmitrijs2005/pdcc/internal/server/protocol"
)

var (
	errAuthRequired         = errors.New("please log in or register first (login, register, /login, /register)")
	errAlreadyAuthenticated = errors.New("already authenticated")
	errUnsupported          = errors.New("unsupported message type")
)

const internalMessage = "internal error, please try again later"

// errorClasses lists the business-rule failures whose text is safe to show the
// client. Anything else is reported as an internal error.
var errorClasses = []struct {
	err   error
	class string
}{
	{protocol.ErrMalformed, "malformed"},
	{errAuthRequired, "auth_required"},
	{errAlreadyAuthenticated, "already_authenticated"},
	{errUnsupported, "unsupported"},
	{common.ErrorNotFound, "not_found"},
	{common.ErrorAlreadyExists, "conflict"},
	{common.ErrorValidation, "validation"},
	{common.ErrorPermissionDenied, "permission"},
	{common.ErrorUnknownCommand, "unknown_command"},
	{common.ErrorUnauthorized, "credentials"},
	{common.ErrorBanned, "banned"},
	{common.ErrInvalidToken, "token"},
	{common.ErrTokenExpired, "token"},
}

func classify(err error) (message, class string) {
	if errors.Is(err, common.ErrorInternal) {
		return internalMessage, "internal"
	}
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			return err.Error(), c.class
		}
	}
	return internalMessage, "internal"
}

// report logs err at a level matching its class and returns the text for the
// client. Storage failures are logged at Error with their cause and never
// shown to the client.
func (e *Engine) report(ctx context.Context, s *Session, op string, err error) string {
	message, class := classify(err)
	e.metrics.Errors.WithLabelValues(class).Inc()
	switch class {
	case "internal":
		s.log.Error(ctx, op+" failed", "error", err)
	case "credentials", "banned", "permission", "token":
		s.log.Warn(ctx, op+" refused", "class", class, "error", err)
	default:
		s.log.Info(ctx, op+" refused", "class", class, "error", err)
	}
	return message
}

func (e *Engine) fail(ctx context.Context, s *Session, op string, err error) {
	e.send(ctx, s, protocol.Error(e.report(ctx, s, op, err)))
}

func unsupported(typ string) error {
	return fmt.Errorf("%w: %s", errUnsupported, typ)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrorValidation, fmt.Sprintf(format, args...))
}

// notFound names what was missing; other errors pass through.
func notFound(what string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return err
}
