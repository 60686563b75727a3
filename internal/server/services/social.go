package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pdcc/internal/common"
	"github.com/dmitrijs2005/pdcc/internal/dbx"
	"github.com/dmitrijs2005/pdcc/internal/server/models"
	"github.com/dmitrijs2005/pdcc/internal/server/repositories/repomanager"
)

// Snapshot is the social state sent to a client right after login.
// Usernames covers every id referenced by the three lists.
type Snapshot struct {
	Friends   []models.Contact
	Incoming  []models.Contact
	Blocked   []models.Contact
	Usernames map[string]string
}

// SocialService enforces the friendship and block invariants.
type SocialService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewSocialService(db *sql.DB, m repomanager.RepositoryManager) *SocialService {
	return &SocialService{db: db, repomanager: m}
}

// RequestResult tells the caller what SendRequest changed.
type RequestResult int

const (
	// RequestUnchanged: an edge requester -> target was already pending or accepted.
	RequestUnchanged RequestResult = iota
	// RequestSent: a pending edge requester -> target was opened.
	RequestSent
	// RequestAccepted: target had a pending request to requester; both
	// edges are now accepted.
	RequestAccepted
)

// SendRequest opens a pending edge requester -> target. If target already has
// a pending request to requester, that request is accepted instead, so a
// pending edge never exists in both directions.
func (s *SocialService) SendRequest(ctx context.Context, requesterID, targetID string) (RequestResult, error) {
	if requesterID == targetID {
		return RequestUnchanged, fmt.Errorf("%w: cannot send a friend request to yourself", common.ErrorValidation)
	}
	if _, err := s.repomanager.Users(s.db).GetByID(ctx, targetID); err != nil {
		return RequestUnchanged, storeError("error fetching target", err)
	}

	result := RequestUnchanged
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Relationships(tx)
		if err := repo.LockPair(ctx, requesterID, targetID); err != nil {
			return err
		}

		crossed, err := repo.HasPending(ctx, targetID, requesterID)
		if err != nil {
			return err
		}
		if crossed {
			if err := repo.Resolve(ctx, targetID, requesterID, models.StatusAccepted); err != nil {
				return err
			}
			if err := repo.Upsert(ctx, requesterID, targetID, models.StatusAccepted); err != nil {
				return err
			}
			result = RequestAccepted
			return nil
		}

		created, err := repo.Request(ctx, requesterID, targetID)
		if err != nil {
			return err
		}
		if created {
			result = RequestSent
		}
		return nil
	})
	if err != nil {
		return RequestUnchanged, storeError("error creating friend request", err)
	}
	return result, nil
}

// Respond resolves the pending edge requester -> responder. Accepting also
// writes responder -> requester as accepted; both edges commit together.
// A missing pending request yields common.ErrorNotFound.
func (s *SocialService) Respond(ctx context.Context, responderID, requesterID string, accept bool) error {
	status := models.StatusRejected
	if accept {
		status = models.StatusAccepted
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Relationships(tx)
		if err := repo.Resolve(ctx, requesterID, responderID, status); err != nil {
			return err
		}
		if !accept {
			return nil
		}
		return repo.Upsert(ctx, responderID, requesterID, models.StatusAccepted)
	})
	if err != nil {
		return storeError("error responding to friend request", err)
	}
	return nil
}

// Remove deletes both directions between owner and peer. Missing edges are
// not an error; removed reports whether anything was deleted.
func (s *SocialService) Remove(ctx context.Context, ownerID, peerID string) (removed bool, err error) {
	n, err := s.repomanager.Relationships(s.db).DeletePair(ctx, ownerID, peerID)
	if err != nil {
		return false, storeError("error removing friend", err)
	}
	return n > 0, nil
}

func (s *SocialService) Block(ctx context.Context, ownerID, targetID string) (created bool, err error) {
	if ownerID == targetID {
		return false, fmt.Errorf("%w: cannot block yourself", common.ErrorValidation)
	}
	if _, err := s.repomanager.Users(s.db).GetByID(ctx, targetID); err != nil {
		return false, storeError("error fetching target", err)
	}

	created, err = s.repomanager.Blocks(s.db).Add(ctx, ownerID, targetID)
	if err != nil {
		return false, storeError("error blocking user", err)
	}
	return created, nil
}

func (s *SocialService) Unblock(ctx context.Context, ownerID, targetID string) (removed bool, err error) {
	removed, err = s.repomanager.Blocks(s.db).Remove(ctx, ownerID, targetID)
	if err != nil {
		return false, storeError("error unblocking user", err)
	}
	return removed, nil
}

// IsBlocked reports whether ownerID has blocked targetID.
func (s *SocialService) IsBlocked(ctx context.Context, ownerID, targetID string) (bool, error) {
	ok, err := s.repomanager.Blocks(s.db).Exists(ctx, ownerID, targetID)
	if err != nil {
		return false, storeError("error checking block", err)
	}
	return ok, nil
}

// Snapshot reads friends, incoming requests and the blocklist of userID in a
// single read-only transaction so the lists and the username table agree.
func (s *SocialService) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	snap := &Snapshot{Usernames: map[string]string{}}

	err := dbx.WithTx(ctx, s.db, dbx.ReadSnapshot, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if snap.Friends, err = s.repomanager.Relationships(tx).Friends(ctx, userID); err != nil {
			return err
		}
		if snap.Incoming, err = s.repomanager.Relationships(tx).Incoming(ctx, userID); err != nil {
			return err
		}
		snap.Blocked, err = s.repomanager.Blocks(tx).List(ctx, userID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, storeError("error loading social snapshot", err)
	}

	for _, list := range [][]models.Contact{snap.Friends, snap.Incoming, snap.Blocked} {
		for _, c := range list {
			snap.Usernames[c.ID] = c.UserName
		}
	}
	return snap, nil
}
