package notification

import (
	"context"
	"errors"
	"fmt"

	"go-hrflow/internal/config"
	"go-hrflow/internal/features/approval"
	"go-hrflow/internal/i18n"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var ErrNotificationNotFound = errors.New("notification not found")

// LocaleSource picks the language a recipient reads notifications in; "" means the default
type LocaleSource interface {
	PreferredLocale(ctx context.Context, loginID string) string
}

type NotificationService interface {
	// Send implements approval.Notifier: it stores an in-app notification and mirrors it to chat
	Send(ctx context.Context, target string, message approval.Message) error

	GetUserNotifications(ctx context.Context, userID string, page, limit int64) ([]Notification, int64, error)
	GetUnreadCount(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, id string, userID string) error
	MarkAllAsRead(ctx context.Context, userID string) error
}

type NotificationServiceImpl struct {
	repo    NotificationRepository
	locales LocaleSource
	chat    *ChatSender
	logger  *zap.Logger
}

func NewNotificationService(repo NotificationRepository, locales LocaleSource, logger *zap.Logger, cfg *config.Config) NotificationService {
	return &NotificationServiceImpl{
		repo:    repo,
		locales: locales,
		chat:    NewChatSender(cfg.ChatWebhookURL),
		logger:  logger,
	}
}

func (s *NotificationServiceImpl) Send(ctx context.Context, target string, message approval.Message) error {
	locale := ""
	if s.locales != nil {
		locale = s.locales.PreferredLocale(ctx, target)
	}
	if locale == "" {
		locale = i18n.LocaleFromContext(ctx)
	}

	notification := render(locale, target, message)
	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	if s.chat.Enabled() {
		err := s.chat.Post(ctx, ChatMessage{
			Target: target,
			Title:  notification.Title,
			Text:   notification.Message,
			Link:   notification.Link,
		})
		if err != nil {
			return err
		}
	}

	s.logger.Debug("Notification sent",
		zap.String("login_id", target),
		zap.String("key", message.Key),
		zap.String("locale", locale))
	return nil
}

// render localizes a message for the recipient
func render(locale, target string, message approval.Message) *Notification {
	data := make(map[string]any, len(message.Data)+1)
	for k, v := range message.Data {
		data[k] = v
	}
	if kind, ok := data["Kind"].(string); ok {
		data["KindName"] = i18n.Localize(locale, "kind."+kind)
	}

	return &Notification{
		UserID:  target,
		Key:     message.Key,
		Title:   i18n.Localize(locale, message.Key+".title", data),
		Message: i18n.Localize(locale, message.Key, data),
		Type:    typeFor(message.Key),
		Link:    message.Link,
	}
}

func (s *NotificationServiceImpl) GetUserNotifications(ctx context.Context, userID string, page, limit int64) ([]Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return s.repo.GetByUserID(ctx, userID, page, limit)
}

func (s *NotificationServiceImpl) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

func (s *NotificationServiceImpl) MarkAsRead(ctx context.Context, id string, userID string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotificationNotFound
	}
	found, err := s.repo.MarkAsRead(ctx, objID, userID)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationServiceImpl) MarkAllAsRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}
