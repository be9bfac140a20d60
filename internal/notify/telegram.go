// Package notify отвечает за доставку уведомлений через Telegram.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier описывает исходящий канал сообщений магазина.
// Сбои доставки логируются и возвращаются вызывающей стороне, но не должны
// откатывать изменения, о которых сообщает уведомление.
type Notifier interface {
	SendToUser(userID int64, text string) error
	SendToAdmin(text string) error
	ForwardToAdmin(fromChatID int64, messageID int) error
}

// Telegram доставляет уведомления через Bot API.
type Telegram struct {
	api         Sender
	adminChatID int64
	logger      *zap.Logger
}

// Sender описывает используемую часть клиента Bot API.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewTelegram создаёт диспетчер уведомлений с указанным административным чатом.
func NewTelegram(api Sender, adminChatID int64, logger *zap.Logger) *Telegram {
	return &Telegram{
		api:         api,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// SendToUser отправляет пользователю HTML-сообщение.
func (t *Telegram) SendToUser(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := t.api.Send(msg); err != nil {
		t.logger.Warn("user message delivery failed", zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Errorf("send to user %d: %w", userID, err)
	}
	return nil
}

// SendToAdmin отправляет сообщение в административный чат.
func (t *Telegram) SendToAdmin(text string) error {
	msg := tgbotapi.NewMessage(t.adminChatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := t.api.Send(msg); err != nil {
		t.logger.Warn("admin message delivery failed", zap.Error(err))
		return fmt.Errorf("send to admin: %w", err)
	}
	return nil
}

// ForwardToAdmin пересылает сообщение пользователя в административный чат.
// Используется для передачи скриншотов оплаты на проверку.
func (t *Telegram) ForwardToAdmin(fromChatID int64, messageID int) error {
	fwd := tgbotapi.NewForward(t.adminChatID, fromChatID, messageID)

	if _, err := t.api.Send(fwd); err != nil {
		t.logger.Warn("media forward failed",
			zap.Int64("from_chat", fromChatID), zap.Int("message_id", messageID), zap.Error(err))
		return fmt.Errorf("forward to admin: %w", err)
	}
	return nil
}
