package chat

import (
	"github.com/dmitrijs2005/pdcc/internal/logging"
	"github.com/dmitrijs2005/pdcc/internal/server/hub"
	"github.com/dmitrijs2005/pdcc/internal/server/models"
)

type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is the state of one connection. It belongs to the goroutine running
// Engine.Serve for that connection and is never shared.
type Session struct {
	conn           hub.Conn
	state          State
	user           *models.User
	failedAttempts int
	closed         bool
	log            logging.Logger
}

func newSession(conn hub.Conn, log logging.Logger) *Session {
	return &Session{conn: conn, state: Anonymous, log: log}
}

// authenticate is the only transition out of Anonymous. The bound user is a
// copy and does not change for the rest of the connection.
func (s *Session) authenticate(u *models.User) {
	user := *u
	s.user = &user
	s.state = Authenticated
	s.log = s.log.With("user", user.UserName)
}

func (s *Session) identity() hub.Identity {
	return hub.Identity{ID: s.user.ID, UserName: s.user.UserName}
}
