package notifier

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
)

// CommandHandler produces the reply to a chat command. An empty reply sends nothing.
type CommandHandler func(ctx context.Context) string

// StartPolling long-polls Telegram and dispatches the given commands (e.g. "/report").
// Only messages from the configured chat are answered. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, commands map[string]CommandHandler) {
	for command, handler := range commands {
		t.bot.RegisterHandler(bot.HandlerTypeMessageText, command, bot.MatchTypeExact, t.dispatch(command, handler))
	}
	logrus.WithField("commands", len(commands)).Info("telegram polling started")
	t.bot.Start(ctx)
	logrus.Info("telegram polling stopped")
}

func (t *TelegramNotifier) dispatch(command string, handler CommandHandler) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		if !t.fromConfiguredChat(update) {
			return
		}
		logrus.WithField("command", command).Info("received command")
		reply := handler(ctx)
		if reply == "" {
			return
		}
		for _, chunk := range SplitText(reply, MaxTextLen) {
			if err := t.Send(ctx, chunk); err != nil {
				logrus.WithError(err).WithField("command", command).Error("send reply failed")
				return
			}
		}
	}
}

func (t *TelegramNotifier) fromConfiguredChat(update *models.Update) bool {
	if update == nil || update.Message == nil {
		return false
	}
	if strconv.FormatInt(update.Message.Chat.ID, 10) != t.chatID {
		logrus.WithField("chat_id", update.Message.Chat.ID).Warn("ignoring command from unknown chat")
		return false
	}
	return true
}
