package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pdcc/internal/common"
	"github.com/dmitrijs2005/pdcc/internal/server/models"
	"github.com/dmitrijs2005/pdcc/internal/server/repositories/repomanager"
)

// MessageService writes to and reads from the message log.
type MessageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewMessageService(db *sql.DB, m repomanager.RepositoryManager) *MessageService {
	return &MessageService{db: db, repomanager: m}
}

// Send persists a direct message. An unknown recipient yields
// common.ErrorNotFound and nothing is written.
func (s *MessageService) Send(ctx context.Context, senderID, recipientID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message text is required", common.ErrorValidation)
	}
	if _, err := s.repomanager.Users(s.db).GetByID(ctx, recipientID); err != nil {
		return nil, storeError("error fetching recipient", err)
	}

	msg, err := s.repomanager.Messages(s.db).Append(ctx, &models.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
	})
	if err != nil {
		return nil, storeError("error storing message", err)
	}
	return msg, nil
}

// History returns the conversation between a and b, oldest first.
func (s *MessageService) History(ctx context.Context, a, b string) ([]*models.Message, error) {
	msgs, err := s.repomanager.Messages(s.db).History(ctx, a, b)
	if err != nil {
		return nil, storeError("error fetching history", err)
	}
	return msgs, nil
}
