package chat

import (
	"context"

	"github.com/dmitrijs2005/pdcc/internal/server/models"
	"github.com/dmitrijs2005/pdcc/internal/server/protocol"
	"github.com/dmitrijs2005/pdcc/internal/server/services"
)

func (e *Engine) sendFriendRequest(ctx context.Context, s *Session, identifier string) {
	if identifier == "" {
		e.fail(ctx, s, "friend request", invalid("identifier is required"))
		return
	}
	peer, err := e.accounts.Lookup(ctx, identifier)
	if err != nil {
		e.fail(ctx, s, "friend request", notFound("user "+identifier, err))
		return
	}

	result, err := e.social.SendRequest(ctx, s.user.ID, peer.ID)
	if err != nil {
		e.fail(ctx, s, "friend request", err)
		return
	}

	switch result {
	case services.RequestUnchanged:
		e.send(ctx, s, protocol.Sys("friend request to "+peer.UserName+" already pending or accepted"))
	case services.RequestAccepted:
		e.befriended(ctx, s, peer)
	default:
		e.send(ctx, s, protocol.Sys("friend request sent to "+peer.UserName))
		e.notify(ctx, s.user.ID, peer.ID, &protocol.Outbound{
			Type:     protocol.OutFriendRequest,
			FromID:   s.user.ID,
			FromName: s.user.UserName,
		})
	}
}

// befriended tells both sides that s.user and peer are now friends.
func (e *Engine) befriended(ctx context.Context, s *Session, peer *models.User) {
	e.send(ctx, s, &protocol.Outbound{
		Type:       protocol.OutFriendAdded,
		FriendID:   peer.ID,
		FriendName: peer.UserName,
	})
	e.notify(ctx, s.user.ID, peer.ID, &protocol.Outbound{
		Type:       protocol.OutFriendAdded,
		FriendID:   s.user.ID,
		FriendName: s.user.UserName,
	})
}

func (e *Engine) respondFriendRequest(ctx context.Context, s *Session, requesterID string, accept bool) {
	if requesterID == "" {
		e.fail(ctx, s, "respond", invalid("fromId is required"))
		return
	}
	requester, err := e.accounts.GetByID(ctx, requesterID)
	if err != nil {
		e.fail(ctx, s, "respond", notFound("user "+requesterID, err))
		return
	}

	if err := e.social.Respond(ctx, s.user.ID, requester.ID, accept); err != nil {
		e.fail(ctx, s, "respond", notFound("friend request from "+requester.UserName, err))
		return
	}

	if !accept {
		e.send(ctx, s, protocol.Sys("friend request from "+requester.UserName+" rejected"))
		return
	}

	e.befriended(ctx, s, requester)
}

func (e *Engine) removeFriend(ctx context.Context, s *Session, peerID string) {
	if peerID == "" {
		e.fail(ctx, s, "remove friend", invalid("friendId is required"))
		return
	}

	removed, err := e.social.Remove(ctx, s.user.ID, peerID)
	if err != nil {
		e.fail(ctx, s, "remove friend", err)
		return
	}

	e.send(ctx, s, &protocol.Outbound{Type: protocol.OutFriendRemoved, FriendID: peerID})
	if removed {
		e.notify(ctx, s.user.ID, peerID, &protocol.Outbound{Type: protocol.OutFriendRemoved, FriendID: s.user.ID})
	}
}

func (e *Engine) block(ctx context.Context, s *Session, targetID string) {
	if targetID == "" {
		e.fail(ctx, s, "block", invalid("userId is required"))
		return
	}
	if _, err := e.social.Block(ctx, s.user.ID, targetID); err != nil {
		e.fail(ctx, s, "block", notFound("user "+targetID, err))
		return
	}

	frame := &protocol.Outbound{Type: protocol.OutBlacklistAdded, UserID: targetID}
	if names, err := e.accounts.Usernames(ctx, []string{targetID}); err == nil {
		frame.Username = names[targetID]
	}
	e.send(ctx, s, frame)
}

func (e *Engine) unblock(ctx context.Context, s *Session, targetID string) {
	if targetID == "" {
		e.fail(ctx, s, "unblock", invalid("userId is required"))
		return
	}
	if _, err := e.social.Unblock(ctx, s.user.ID, targetID); err != nil {
		e.fail(ctx, s, "unblock", err)
		return
	}
	e.send(ctx, s, &protocol.Outbound{Type: protocol.OutBlacklistRemoved, UserID: targetID})
}
