// Package notify tells the outside world about finished books
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"booklist/internal/models"
)

// Notifier is told when a book is marked complete
type Notifier interface {
	BookCompleted(ctx context.Context, book models.Book)
}

// Nop discards notifications
type Nop struct{}

func (Nop) BookCompleted(context.Context, models.Book) {}

// sender is the part of tgbotapi.BotAPI the notifier needs
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts a message to a chat, optionally into a forum thread
type Telegram struct {
	api      sender
	chatID   int64
	threadID int
	logger   *zap.Logger
}

// NewTelegram creates a Telegram notifier
func NewTelegram(token string, chatID int64, threadID int, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Telegram notifier created",
		zap.String("bot_username", api.Self.UserName),
		zap.Int64("chat_id", chatID),
	)

	return &Telegram{api: api, chatID: chatID, threadID: threadID, logger: logger}, nil
}

// BookCompleted sends "Finished: {title} by {author}". Failures are only logged.
func (t *Telegram) BookCompleted(ctx context.Context, book models.Book) {
	if t.api == nil {
		return // For testing
	}

	msg := tgbotapi.NewMessage(t.chatID, CompletedText(book))
	if t.threadID != 0 {
		// replying to a topic's opening message posts into that topic
		msg.ReplyToMessageID = t.threadID
	}

	if _, err := t.api.Send(msg); err != nil {
		t.logger.Warn("Failed to send completion notification",
			zap.Error(err),
			zap.String("book_id", book.ID),
			zap.Int64("chat_id", t.chatID),
		)
		return
	}

	t.logger.Info("Completion notification sent",
		zap.String("book_id", book.ID),
		zap.String("title", book.Title),
	)
}

// CompletedText formats the notification body
func CompletedText(book models.Book) string {
	text := fmt.Sprintf("Finished: %s by %s", book.Title, book.Author)
	if book.Rating > 0 {
		text += fmt.Sprintf(" (%d/%d)", book.Rating, models.MaxRating)
	}
	return text
}
