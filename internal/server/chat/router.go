package chat

import (
	"context"

	"github.com/dmitrijs2005/pdcc/internal/server/protocol"
)

// direct persists the message first; live delivery is best effort and the
// sender's ack only means delivery was attempted.
func (e *Engine) direct(ctx context.Context, s *Session, toID, text string) {
	if err := e.checkLength(text); err != nil {
		e.fail(ctx, s, "message", err)
		return
	}
	msg, err := e.messages.Send(ctx, s.user.ID, toID, text)
	if err != nil {
		e.fail(ctx, s, "message", notFound("recipient "+toID, err))
		return
	}
	e.metrics.Messages.WithLabelValues("direct").Inc()

	ts := msg.CreatedAt
	delivered := e.notify(ctx, s.user.ID, toID, &protocol.Outbound{
		Type:      protocol.OutMessage,
		FromID:    s.user.ID,
		FromName:  s.user.UserName,
		ToID:      toID,
		Text:      msg.Content,
		Timestamp: &ts,
	})
	s.log.Debug(ctx, "message stored", "message_id", msg.ID, "live_deliveries", delivered)

	e.send(ctx, s, &protocol.Outbound{
		Type:      protocol.OutMessageSent,
		ToID:      toID,
		Text:      msg.Content,
		Timestamp: &ts,
	})
}

// checkLength rejects text over the configured limit; zero means no limit.
func (e *Engine) checkLength(text string) error {
	if limit := e.cfg.MaxMessageLength; limit > 0 && len(text) > limit {
		return invalid("message is %d bytes, the limit is %d", len(text), limit)
	}
	return nil
}

// broadcast relays text to every other authenticated connection. Nothing is
// persisted and blocks do not apply.
func (e *Engine) broadcast(ctx context.Context, s *Session, typ, text string) {
	if text == "" {
		e.fail(ctx, s, typ, invalid("message content is required"))
		return
	}
	if err := e.checkLength(text); err != nil {
		e.fail(ctx, s, typ, err)
		return
	}

	frame := &protocol.Outbound{Type: typ, FromID: s.user.ID, FromName: s.user.UserName}
	if typ == protocol.OutLegacyMsg {
		frame.Data = text
	} else {
		frame.Content = text
	}

	n := e.deliver(ctx, e.hub.Authenticated(s.conn.ID()), frame)
	e.metrics.Messages.WithLabelValues("broadcast").Inc()
	s.log.Debug(ctx, "broadcast", "recipients", n)
}

func (e *Engine) history(ctx context.Context, s *Session, friendID string) {
	if friendID == "" {
		e.fail(ctx, s, "history", invalid("friendId is required"))
		return
	}

	msgs, err := e.messages.History(ctx, s.user.ID, friendID)
	if err != nil {
		e.fail(ctx, s, "history", err)
		return
	}

	entries := make([]protocol.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, protocol.HistoryEntry{
			ID:        m.ID,
			FromID:    m.SenderID,
			ToID:      m.RecipientID,
			Text:      m.Content,
			Timestamp: m.CreatedAt,
		})
	}
	e.send(ctx, s, &protocol.Outbound{Type: protocol.OutChatHistory, FriendID: friendID, History: entries})
}

func (e *Engine) queryUsernames(ctx context.Context, s *Session, ids []string) {
	names, err := e.accounts.Usernames(ctx, ids)
	if err != nil {
		e.fail(ctx, s, "usernames", err)
		return
	}
	e.send(ctx, s, &protocol.Outbound{Type: protocol.OutUsernames, Usernames: names})
}
