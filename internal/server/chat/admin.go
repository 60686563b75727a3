package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/pdcc/internal/common"
	"github.com/dmitrijs2005/pdcc/internal/server/permissions"
	"github.com/dmitrijs2005/pdcc/internal/server/protocol"
)

// command runs an administrative command after the permission gate allows it.
func (e *Engine) command(ctx context.Context, s *Session, text string) {
	if f := strings.Fields(text); len(f) > 0 && (f[0] == "/login" || f[0] == "/register") {
		e.fail(ctx, s, "command", errAlreadyAuthenticated)
		return
	}

	cmd, err := e.gate.Authorize(s.user.Permission, text)
	if err != nil {
		e.fail(ctx, s, "command", err)
		return
	}
	s.log.Info(ctx, "command", "name", cmd.Name, "args", cmd.Args)

	switch cmd.Name {
	case "kick":
		err = e.kick(ctx, s, cmd)
	case "ban":
		err = e.ban(ctx, s, cmd)
	case "unban":
		err = e.unban(ctx, s, cmd)
	case "ban list":
		err = e.banList(ctx, s)
	case "grant":
		err = e.grant(ctx, s, cmd)
	default:
		err = fmt.Errorf("%w: %s", common.ErrorUnknownCommand, cmd.Name)
	}
	if err != nil {
		e.fail(ctx, s, cmd.Name, err)
	}
}

func target(cmd *permissions.Command) (string, error) {
	if len(cmd.Args) != 1 {
		return "", invalid("usage: /%s <username>", cmd.Name)
	}
	return cmd.Args[0], nil
}

// outranks refuses commands aimed at a user whose stored level is above the
// issuer's. A missing user is reported as common.ErrorNotFound.
func (e *Engine) outranks(ctx context.Context, s *Session, cmdName, userName string) error {
	u, err := e.accounts.Lookup(ctx, userName)
	if err != nil {
		return notFound("user "+userName, err)
	}
	if u.Permission > s.user.Permission {
		return fmt.Errorf("%w: cannot %s %s, their level %d is above your own",
			common.ErrorPermissionDenied, cmdName, userName, u.Permission)
	}
	return nil
}

func (e *Engine) kick(ctx context.Context, s *Session, cmd *permissions.Command) error {
	userName, err := target(cmd)
	if err != nil {
		return err
	}
	if err := e.outranks(ctx, s, "kick", userName); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	n := e.disconnect(ctx, userName, protocol.CloseKicked, "kicked",
		"you have been kicked by "+s.user.UserName)
	if n == 0 {
		e.send(ctx, s, protocol.Sys(fmt.Sprintf("%s is not online", userName)))
		return nil
	}
	e.send(ctx, s, protocol.Sys(fmt.Sprintf("kicked %s (%d connection(s))", userName, n)))
	return nil
}

func (e *Engine) ban(ctx context.Context, s *Session, cmd *permissions.Command) error {
	userName, err := target(cmd)
	if err != nil {
		return err
	}
	if userName == s.user.UserName {
		return invalid("cannot ban yourself")
	}
	if err := e.outranks(ctx, s, "ban", userName); err != nil {
		return err
	}

	if err := e.accounts.Ban(ctx, userName); err != nil {
		return notFound("user "+userName, err)
	}

	n := e.disconnect(ctx, userName, protocol.CloseBanned, "banned",
		"you have been banned by "+s.user.UserName)
	if n == 0 {
		e.send(ctx, s, protocol.Sys(fmt.Sprintf("banned %s (not online)", userName)))
		return nil
	}
	e.send(ctx, s, protocol.Sys(fmt.Sprintf("banned %s and closed %d connection(s)", userName, n)))
	return nil
}

func (e *Engine) unban(ctx context.Context, s *Session, cmd *permissions.Command) error {
	userName, err := target(cmd)
	if err != nil {
		return err
	}
	if err := e.accounts.Unban(ctx, userName); err != nil {
		return notFound("user "+userName, err)
	}
	e.send(ctx, s, protocol.Sys("unbanned "+userName))
	return nil
}

func (e *Engine) banList(ctx context.Context, s *Session) error {
	names, err := e.accounts.ListBanned(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		e.send(ctx, s, protocol.Sys("no banned users"))
		return nil
	}
	e.send(ctx, s, protocol.Sys("banned users: "+strings.Join(names, ", ")))
	return nil
}

func (e *Engine) grant(ctx context.Context, s *Session, cmd *permissions.Command) error {
	if len(cmd.Args) != 2 {
		return invalid("usage: /grant <username> <level>")
	}
	userName := cmd.Args[0]
	level, err := strconv.Atoi(cmd.Args[1])
	if err != nil {
		return invalid("level must be a number")
	}
	if level > s.user.Permission {
		return fmt.Errorf("%w: cannot grant level %d above your own", common.ErrorPermissionDenied, level)
	}
	if err := e.outranks(ctx, s, "grant", userName); err != nil {
		return err
	}

	if err := e.accounts.Grant(ctx, userName, level); err != nil {
		return notFound("user "+userName, err)
	}
	e.send(ctx, s, protocol.Sys(fmt.Sprintf("granted level %d to %s, effective at next login", level, userName)))
	return nil
}

// disconnect closes every live connection bound to userName and returns how
// many there were.
func (e *Engine) disconnect(ctx context.Context, userName string, code int, reason, notice string) int {
	conns := e.hub.ByUserName(userName)
	for _, c := range conns {
		_ = c.Send(protocol.Error(notice))
		if err := c.Close(code, reason); err != nil {
			e.log.Debug(ctx, "close failed", "conn_id", c.ID(), "error", err)
		}
		e.metrics.Closes.WithLabelValues(reason).Inc()
	}
	if len(conns) > 0 {
		e.log.Info(ctx, "connections closed", "target", userName, "count", len(conns), "reason", reason)
	}
	return len(conns)
}
