package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"booklist/internal/models"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegram_BookCompleted(t *testing.T) {
	api := &fakeSender{}
	n := &Telegram{api: api, chatID: 42, threadID: 7, logger: zap.NewNop()}

	n.BookCompleted(context.Background(), models.Book{ID: "r1", Title: "Dune", Author: "Herbert", Rating: 4})

	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, 7, msg.ReplyToMessageID)
	assert.Equal(t, "Finished: Dune by Herbert (4/5)", msg.Text)
}

func TestTelegram_SendFailureIsSwallowed(t *testing.T) {
	api := &fakeSender{err: errors.New("Forbidden: bot was kicked")}
	n := &Telegram{api: api, chatID: 42, logger: zap.NewNop()}

	assert.NotPanics(t, func() {
		n.BookCompleted(context.Background(), models.Book{Title: "Dune", Author: "Herbert"})
	})
	assert.Len(t, api.sent, 1)
}

func TestTelegram_NilAPI(t *testing.T) {
	n := &Telegram{logger: zap.NewNop()}
	assert.NotPanics(t, func() {
		n.BookCompleted(context.Background(), models.Book{})
	})
}

func TestCompletedText(t *testing.T) {
	assert.Equal(t, "Finished: Emma by Austen", CompletedText(models.Book{Title: "Emma", Author: "Austen"}))
}
