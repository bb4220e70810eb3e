package services

import (
	"context"
	"strings"

	"busmate/internal/apperrors"
	"busmate/internal/models"
	"busmate/internal/repositories"
)

// Replier answers a support chat message. It must always return a reply.
type Replier interface {
	Reply(ctx context.Context, message string) string
}

type SupportService struct {
	repo  repositories.Repository
	reply Replier
}

func NewSupportService(repo repositories.Repository, reply Replier) *SupportService {
	return &SupportService{repo: repo, reply: reply}
}

// Record stores a trimmed support message.
func (s *SupportService) Record(ctx context.Context, userID uint, text string) (*models.SupportMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.ErrEmptyMessage
	}
	msg := &models.SupportMessage{UserID: userID, Message: text}
	if err := s.repo.SupportMessage().Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Respond runs the responder chain for a chat message.
func (s *SupportService) Respond(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.ErrEmptyMessage
	}
	return s.reply.Reply(ctx, text), nil
}

func (s *SupportService) History(ctx context.Context, userID uint) ([]models.SupportMessage, error) {
	return s.repo.SupportMessage().ListByUser(ctx, userID)
}
