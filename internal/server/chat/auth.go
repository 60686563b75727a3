package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pdcc/internal/common"
	"github.com/dmitrijs2005/pdcc/internal/server/models"
	"github.com/dmitrijs2005/pdcc/internal/server/protocol"
)

func (e *Engine) handleAnonymous(ctx context.Context, s *Session, in *protocol.Inbound) {
	switch in.Type {
	case protocol.TypeRegister:
		e.register(ctx, s, in.Username, in.Password)
	case protocol.TypeLogin:
		if in.Token != "" {
			e.loginToken(ctx, s, in.Token)
			return
		}
		e.loginPassword(ctx, s, in.Username, in.Password)
	case protocol.TypeCommand:
		e.slashCommand(ctx, s, in.CommandText())
	default:
		e.fail(ctx, s, in.Type, errAuthRequired)
	}
}

// slashCommand handles "/login u p" and "/register u p" sent as command text.
func (e *Engine) slashCommand(ctx context.Context, s *Session, text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || (fields[0] != "/login" && fields[0] != "/register") {
		e.fail(ctx, s, "command", errAuthRequired)
		return
	}
	if len(fields) < 3 {
		e.fail(ctx, s, fields[0], invalid("usage: %s <username> <password>", fields[0]))
		return
	}

	if fields[0] == "/register" {
		e.register(ctx, s, fields[1], fields[2])
		return
	}
	e.loginPassword(ctx, s, fields[1], fields[2])
}

func (e *Engine) register(ctx context.Context, s *Session, userName, password string) {
	user, err := e.accounts.Register(ctx, userName, password)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			err = fmt.Errorf("username %s: %w", userName, err)
		}
		e.send(ctx, s, protocol.Result(protocol.OutRegister, false, e.report(ctx, s, "register", err)))
		return
	}

	s.log.Info(ctx, "user registered", "registered_user", user.UserName)
	e.send(ctx, s, protocol.Result(protocol.OutRegister, true, "registration successful, please log in"))
}

func (e *Engine) loginPassword(ctx context.Context, s *Session, userName, password string) {
	if userName == "" || password == "" {
		e.send(ctx, s, protocol.Result(protocol.OutLogin, false,
			e.report(ctx, s, "login", invalid("username and password are required"))))
		return
	}

	user, err := e.accounts.Authenticate(ctx, userName, password)
	switch {
	case err == nil:
		e.metrics.Logins.WithLabelValues("password", "success").Inc()
		e.completeLogin(ctx, s, user, true)
	case errors.Is(err, common.ErrorBanned):
		e.refuseBanned(ctx, s, "password")
	case errors.Is(err, common.ErrorUnauthorized):
		e.failedAttempt(ctx, s)
	default:
		e.metrics.Logins.WithLabelValues("password", "error").Inc()
		e.send(ctx, s, protocol.Result(protocol.OutLogin, false, e.report(ctx, s, "login", err)))
	}
}

// loginToken never touches the failed-attempt counter.
func (e *Engine) loginToken(ctx context.Context, s *Session, token string) {
	user, err := e.accounts.AuthenticateToken(ctx, token)
	switch {
	case err == nil:
		e.metrics.Logins.WithLabelValues("token", "success").Inc()
		e.completeLogin(ctx, s, user, false)
	case errors.Is(err, common.ErrorBanned):
		e.refuseBanned(ctx, s, "token")
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		e.metrics.Logins.WithLabelValues("token", "failure").Inc()
		e.send(ctx, s, protocol.Result(protocol.OutLogin, false, e.report(ctx, s, "token login", err)))
	default:
		e.metrics.Logins.WithLabelValues("token", "error").Inc()
		e.send(ctx, s, protocol.Result(protocol.OutLogin, false, e.report(ctx, s, "token login", err)))
	}
}

func (e *Engine) failedAttempt(ctx context.Context, s *Session) {
	s.failedAttempts++
	e.metrics.Logins.WithLabelValues("password", "failure").Inc()
	e.send(ctx, s, protocol.Result(protocol.OutLogin, false, e.report(ctx, s, "login", common.ErrorUnauthorized)))

	if s.failedAttempts >= e.cfg.MaxLoginAttempts {
		e.closeSession(ctx, s, protocol.CloseTooManyAttempts, "too many failed logins",
			fmt.Sprintf("%d failed login attempts, disconnecting", s.failedAttempts))
	}
}

func (e *Engine) refuseBanned(ctx context.Context, s *Session, method string) {
	e.metrics.Logins.WithLabelValues(method, "banned").Inc()
	e.send(ctx, s, protocol.Result(protocol.OutLogin, false, e.report(ctx, s, "login", common.ErrorBanned)))
	e.closeSession(ctx, s, protocol.CloseBanned, "banned", "")
}

// completeLogin moves s to Authenticated, publishes it in the registry and
// sends the login payload. Password logins also receive a fresh token.
func (e *Engine) completeLogin(ctx context.Context, s *Session, user *models.User, issueToken bool) {
	s.authenticate(user)
	e.hub.Bind(s.conn, s.identity())
	e.metrics.Authenticated.Inc()
	s.log.Info(ctx, "authenticated", "user_id", user.ID, "permission", user.Permission)

	frame := protocol.Result(protocol.OutLogin, true, "login successful")
	frame.UserID = s.user.ID
	frame.Username = s.user.UserName
	frame.Permission = s.user.Permission

	snap, snapErr := e.social.Snapshot(ctx, s.user.ID)
	if snapErr == nil {
		frame.Friends = contacts(snap.Friends)
		frame.Requests = contacts(snap.Incoming)
		frame.Blacklist = contacts(snap.Blocked)
		frame.Usernames = snap.Usernames
	}
	e.send(ctx, s, frame)
	if snapErr != nil {
		e.fail(ctx, s, "load contacts", snapErr)
	}

	if !issueToken {
		return
	}
	token, err := e.accounts.IssueToken(s.user.UserName)
	if err != nil {
		s.log.Error(ctx, "issuing token failed", "error", err)
		return
	}
	e.send(ctx, s, &protocol.Outbound{Type: protocol.OutToken, Data: token})
}

func contacts(in []models.Contact) []protocol.Contact {
	out := make([]protocol.Contact, 0, len(in))
	for _, c := range in {
		out = append(out, protocol.Contact{ID: c.ID, Username: c.UserName})
	}
	return out
}
