package telegramimpl

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/orgball2608/reddit-research-bot/internal/telegram"
	"github.com/orgball2608/reddit-research-bot/pkg/config"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"go.uber.org/fx"
)

// maxMessageLength is the Telegram limit for a single text message.
const maxMessageLength = 4096

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type TelegramImpl struct {
	TgBot  *tgbotapi.BotAPI
	Logger logger.Logger
	Users  []int64
}

func New(opts Opts) (*TelegramImpl, error) {
	tgBot, err := tgbotapi.NewBotAPI(opts.Config.Telegram.Token)
	if err != nil {
		opts.Logger.Error("Error creating bot", "Error", err)
		return nil, err
	}
	return newWithBot(tgBot, opts.Config.Telegram.AuthorizedUsers, opts.Logger), nil
}

func newWithBot(bot *tgbotapi.BotAPI, users []int64, log logger.Logger) *TelegramImpl {
	return &TelegramImpl{
		TgBot:  bot,
		Logger: log.WithComponent("Telegram"),
		Users:  users,
	}
}

var _ telegram.Client = (*TelegramImpl)(nil)

func (tg *TelegramImpl) GetUpdatesChan(u tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return tg.TgBot.GetUpdatesChan(u)
}

func (tg *TelegramImpl) StopReceivingUpdates() {
	tg.TgBot.StopReceivingUpdates()
}

// SendMessage sends text to a chat, splitting it when it exceeds the message
// limit. The id of the last sent message is returned.
func (tg *TelegramImpl) SendMessage(chatID int64, text string) (int, error) {
	var lastID int
	for _, chunk := range splitMessage(text, maxMessageLength) {
		sent, err := tg.TgBot.Send(tgbotapi.NewMessage(chatID, chunk))
		if err != nil {
			tg.Logger.Error("Error sending message", "chatID", chatID, "error", err)
			return lastID, fmt.Errorf("failed to send message: %w", err)
		}
		lastID = sent.MessageID
	}
	tg.Logger.Debug("Message sent", "chatID", chatID, "messageID", lastID)
	return lastID, nil
}

func (tg *TelegramImpl) EditMessageText(chatID int64, messageID int, newText string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, truncateMessage(newText, maxMessageLength))
	if _, err := tg.TgBot.Send(edit); err != nil {
		tg.Logger.Warn("Error editing message", "chatID", chatID, "messageID", messageID, "error", err)
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (tg *TelegramImpl) SendDocument(chatID int64, name string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	if _, err := tg.TgBot.Send(doc); err != nil {
		tg.Logger.Error("Error sending document", "chatID", chatID, "name", name, "error", err)
		return fmt.Errorf("failed to send document %s: %w", name, err)
	}
	tg.Logger.Info("Document sent", "chatID", chatID, "name", name, "bytes", len(data))
	return nil
}

func (tg *TelegramImpl) NotifyAuthorized(text string) {
	for _, userID := range tg.Users {
		if _, err := tg.SendMessage(userID, text); err != nil {
			tg.Logger.Error("Error notifying user", "userID", userID, "error", err)
		}
	}
}

// splitMessage cuts text into chunks of at most limit runes, preferring line
// breaks as cut points.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func truncateMessage(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-3]) + "..."
}
