package ws

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/pdcc/internal/logging"
	"github.com/dmitrijs2005/pdcc/internal/server/hub"
	"github.com/dmitrijs2005/pdcc/internal/server/protocol"
	"github.com/gorilla/websocket"
)

// Sessions runs the chat protocol for one connection until frames is closed.
type Sessions interface {
	Serve(ctx context.Context, conn hub.Conn, frames <-chan []byte)
}

type Handler struct {
	upgrader websocket.Upgrader
	sessions Sessions
	log      logging.Logger
}

func NewHandler(sessions Sessions, log logging.Logger) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// clients are terminal programs, not browsers
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: sessions,
		log:      log.With("module", "ws"),
	}
}

// ServeHTTP upgrades the request and blocks until the session ends. The
// request context must be derived from the server lifetime context, so
// shutdown reaches hijacked connections.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(ctx, "upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(raw, h.log)
	c.log.Debug(ctx, "upgraded", "remote", r.RemoteAddr)

	frames := make(chan []byte)
	go c.writePump(ctx)
	go c.readPump(ctx, frames)

	h.sessions.Serve(ctx, c, frames)

	_ = c.Close(protocol.CloseNormal, "")
	<-c.done
}
