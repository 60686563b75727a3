// Package chat runs client sessions: the authentication state machine, the
// administrative commands behind the permission gate, the social graph
// operations and message routing.
package chat

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pdcc/internal/logging"
	"github.com/dmitrijs2005/pdcc/internal/server/hub"
	"github.com/dmitrijs2005/pdcc/internal/server/metrics"
	"github.com/dmitrijs2005/pdcc/internal/server/models"
	"github.com/dmitrijs2005/pdcc/internal/server/permissions"
	"github.com/dmitrijs2005/pdcc/internal/server/protocol"
	"github.com/dmitrijs2005/pdcc/internal/server/services"
)

// Accounts is the credential store as seen by sessions.
type Accounts interface {
	Register(ctx context.Context, userName, password string) (*models.User, error)
	Authenticate(ctx context.Context, userName, password string) (*models.User, error)
	AuthenticateToken(ctx context.Context, token string) (*models.User, error)
	IssueToken(userName string) (string, error)
	Lookup(ctx context.Context, identifier string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Usernames(ctx context.Context, ids []string) (map[string]string, error)
	Ban(ctx context.Context, userName string) error
	Unban(ctx context.Context, userName string) error
	ListBanned(ctx context.Context) ([]string, error)
	Grant(ctx context.Context, userName string, level int) error
}

type Social interface {
	SendRequest(ctx context.Context, requesterID, targetID string) (services.RequestResult, error)
	Respond(ctx context.Context, responderID, requesterID string, accept bool) error
	Remove(ctx context.Context, ownerID, peerID string) (bool, error)
	Block(ctx context.Context, ownerID, targetID string) (bool, error)
	Unblock(ctx context.Context, ownerID, targetID string) (bool, error)
	IsBlocked(ctx context.Context, ownerID, targetID string) (bool, error)
	Snapshot(ctx context.Context, userID string) (*services.Snapshot, error)
}

type Messages interface {
	Send(ctx context.Context, senderID, recipientID, content string) (*models.Message, error)
	History(ctx context.Context, a, b string) ([]*models.Message, error)
}

type Config struct {
	AuthTimeout      time.Duration
	MaxLoginAttempts int
	ProtocolVersion  string
	MaxMessageLength int
}

type Options struct {
	Config   Config
	Accounts Accounts
	Social   Social
	Messages Messages
	Gate     *permissions.Gate
	Registry *hub.Registry
	Metrics  *metrics.Metrics
	Logger   logging.Logger
}

type Engine struct {
	cfg      Config
	accounts Accounts
	social   Social
	messages Messages
	gate     *permissions.Gate
	hub      *hub.Registry
	metrics  *metrics.Metrics
	log      logging.Logger
}

func NewEngine(o Options) *Engine {
	if o.Metrics == nil {
		o.Metrics = metrics.New(nil)
	}
	if o.Logger == nil {
		o.Logger = logging.Nop{}
	}
	return &Engine{
		cfg:      o.Config,
		accounts: o.Accounts,
		social:   o.Social,
		messages: o.Messages,
		gate:     o.Gate,
		hub:      o.Registry,
		metrics:  o.Metrics,
		log:      o.Logger.With("module", "chat"),
	}
}

// Serve runs the session for conn until frames is closed, ctx is done, or the
// server closes the connection. Frames are handled one at a time in arrival
// order. ctx must outlive the connection: store calls made on its behalf use
// it and are not cut short when the client goes away.
func (e *Engine) Serve(ctx context.Context, conn hub.Conn, frames <-chan []byte) {
	s := newSession(conn, e.log.With("conn_id", conn.ID()))

	e.metrics.Connections.Inc()
	defer e.metrics.Connections.Dec()
	defer e.release(ctx, s)

	s.log.Info(ctx, "connection opened")
	e.send(ctx, s, &protocol.Outbound{Type: protocol.OutVersion, Data: e.cfg.ProtocolVersion})
	e.send(ctx, s, protocol.Sys("welcome! log in or register first: /login <username> <password> or /register <username> <password>"))

	timer := time.NewTimer(e.cfg.AuthTimeout)
	defer timer.Stop()
	timeout := timer.C

	for !s.closed {
		select {
		case <-ctx.Done():
			_ = conn.Close(protocol.CloseNormal, "server shutting down")
			return

		case <-timeout:
			timeout = nil
			if s.state == Anonymous {
				e.closeSession(ctx, s, protocol.CloseAuthTimeout, "auth timeout",
					"not logged in within "+e.cfg.AuthTimeout.String()+", disconnecting")
			}

		case raw, ok := <-frames:
			if !ok {
				return
			}
			e.handle(ctx, s, raw)

			// disarm in the same step as the transition
			if s.state == Authenticated && timeout != nil {
				timer.Stop()
				timeout = nil
			}
		}
	}
}

func (e *Engine) release(ctx context.Context, s *Session) {
	if e.hub.Remove(s.conn.ID()) {
		e.metrics.Authenticated.Dec()
	}
	s.log.Info(ctx, "connection closed", "state", s.state.String())
}

func (e *Engine) handle(ctx context.Context, s *Session, raw []byte) {
	in, err := protocol.Decode(raw)
	if err != nil {
		e.metrics.Frames.WithLabelValues("malformed").Inc()
		e.fail(ctx, s, "decode", err)
		return
	}
	e.metrics.Frames.WithLabelValues(frameLabel(in.Type)).Inc()
	s.log.Debug(ctx, "frame received", "type", in.Type)

	if in.Type == protocol.TypeVersion || in.Type == protocol.TypeVersionShort {
		e.handshake(ctx, s, in.VersionString())
		return
	}

	if s.state == Anonymous {
		e.handleAnonymous(ctx, s, in)
		return
	}
	e.handleAuthenticated(ctx, s, in)
}

func (e *Engine) handleAuthenticated(ctx context.Context, s *Session, in *protocol.Inbound) {
	switch in.Type {
	case protocol.TypeLogin, protocol.TypeRegister:
		e.fail(ctx, s, in.Type, errAlreadyAuthenticated)
	case protocol.TypeCommand:
		e.command(ctx, s, in.CommandText())
	case protocol.TypeFriendRequest:
		e.sendFriendRequest(ctx, s, in.Identifier)
	case protocol.TypeRespondRequest:
		e.respondFriendRequest(ctx, s, in.FromID, in.Accept)
	case protocol.TypeRemoveFriend:
		e.removeFriend(ctx, s, in.FriendID)
	case protocol.TypeBlock:
		e.block(ctx, s, in.UserID)
	case protocol.TypeUnblock:
		e.unblock(ctx, s, in.UserID)
	case protocol.TypeMessage:
		if in.ToID != "" {
			e.direct(ctx, s, in.ToID, in.Text)
			return
		}
		e.broadcast(ctx, s, protocol.OutMessage, in.BroadcastText())
	case protocol.TypeLegacyMsg:
		e.broadcast(ctx, s, protocol.OutLegacyMsg, in.BroadcastText())
	case protocol.TypeChatHistory:
		e.history(ctx, s, in.FriendID)
	case protocol.TypeQueryUsernames:
		e.queryUsernames(ctx, s, in.IDs)
	default:
		e.fail(ctx, s, in.Type, unsupported(in.Type))
	}
}

func (e *Engine) handshake(ctx context.Context, s *Session, version string) {
	if version == e.cfg.ProtocolVersion {
		s.log.Debug(ctx, "version handshake ok", "version", version)
		return
	}
	s.log.Info(ctx, "version mismatch", "client_version", version)
	e.metrics.Errors.WithLabelValues("version").Inc()
	e.closeSession(ctx, s, protocol.CloseVersionMismatch, "version mismatch",
		"version mismatch: server "+e.cfg.ProtocolVersion+", client "+version)
}

// closeSession optionally sends notice as an error frame, then closes the
// connection with code. No further frames from it are handled.
func (e *Engine) closeSession(ctx context.Context, s *Session, code int, reason, notice string) {
	if notice != "" {
		e.send(ctx, s, protocol.Error(notice))
	}
	if err := s.conn.Close(code, reason); err != nil {
		s.log.Debug(ctx, "close failed", "error", err)
	}
	s.closed = true
	e.metrics.Closes.WithLabelValues(reason).Inc()
	s.log.Info(ctx, "connection closed by server", "code", code, "reason", reason)
}

func (e *Engine) send(ctx context.Context, s *Session, frame *protocol.Outbound) {
	if err := s.conn.Send(frame); err != nil {
		s.log.Debug(ctx, "send failed", "type", frame.Type, "error", err)
	}
}

// deliver fans frame out to conns and returns how many accepted it. Closed
// connections are skipped.
func (e *Engine) deliver(ctx context.Context, conns []hub.Conn, frame *protocol.Outbound) int {
	n := 0
	for _, c := range conns {
		if err := c.Send(frame); err != nil {
			e.log.Debug(ctx, "delivery skipped", "conn_id", c.ID(), "type", frame.Type, "error", err)
			continue
		}
		n++
	}
	return n
}

// notify delivers frame to the live sessions of recipientID unless actorID
// has blocked recipientID.
func (e *Engine) notify(ctx context.Context, actorID, recipientID string, frame *protocol.Outbound) int {
	conns := e.hub.ByUserID(recipientID)
	if len(conns) == 0 {
		return 0
	}

	blocked, err := e.social.IsBlocked(ctx, actorID, recipientID)
	if err != nil {
		e.log.Error(ctx, "block check failed, notification dropped", "type", frame.Type, "recipient", recipientID, "error", err)
		return 0
	}
	if blocked {
		e.log.Debug(ctx, "notification suppressed by block", "type", frame.Type, "recipient", recipientID)
		return 0
	}
	return e.deliver(ctx, conns, frame)
}

var knownFrames = map[string]bool{
	protocol.TypeRegister:       true,
	protocol.TypeLogin:          true,
	protocol.TypeVersion:        true,
	protocol.TypeVersionShort:   true,
	protocol.TypeCommand:        true,
	protocol.TypeFriendRequest:  true,
	protocol.TypeRespondRequest: true,
	protocol.TypeRemoveFriend:   true,
	protocol.TypeBlock:          true,
	protocol.TypeUnblock:        true,
	protocol.TypeMessage:        true,
	protocol.TypeLegacyMsg:      true,
	protocol.TypeChatHistory:    true,
	protocol.TypeQueryUsernames: true,
}

// frameLabel keeps the metrics label set bounded.
func frameLabel(typ string) string {
	if knownFrames[typ] {
		return typ
	}
	return "unknown"
}
