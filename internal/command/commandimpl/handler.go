package commandimpl

import (
	"context"
	"errors"
	"runtime/debug"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpMessage = `Reddit Research Bot

Commands:
/research <brand> - Deep dive into the last months of Reddit posts
/research_list - List configured brands
/research_stop - Cancel the running research
/research_history - Show this chat's latest stored runs
/research_export <run id> - Download the CSV of a stored run
/help - Show this message`

func (c *CommandImpl) HandleCommand(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := c.Telegram.GetUpdatesChan(u)
	c.Logger.Info("Command handler started, listening for updates.")

	for {
		select {
		case <-ctx.Done():
			c.Logger.Info("Command handler shutting down.")
			c.Telegram.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				c.Logger.Warn("Telegram updates channel closed unexpectedly.")
				return errors.New("telegram updates channel closed")
			}

			go func(u tgbotapi.Update) {
				defer func() {
					if r := recover(); r != nil {
						c.Logger.Error("Panic recovered while processing an update", "panic", r, "stack", string(debug.Stack()))
					}
				}()

				if u.Message == nil || !u.Message.IsCommand() {
					return
				}
				if err := c.processCommand(ctx, u.Message); err != nil {
					c.Logger.Error("Error processing command",
						"command", u.Message.Command(),
						"error", err)
				}
			}(update)
		}
	}
}

func (c *CommandImpl) processCommand(ctx context.Context, msg *tgbotapi.Message) error {
	command := msg.Command()
	args := msg.CommandArguments()
	chatID := msg.Chat.ID

	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}

	if !c.isAuthorized(userID) {
		c.Logger.Warn("Ignoring command from unauthorized user", "userID", userID, "command", command)
		if command == "start" {
			_, err := c.Telegram.SendMessage(chatID, "Not authorized.")
			return err
		}
		return nil
	}

	if !c.Limiter.Allow(userID) {
		c.Logger.Info("Command throttled", "userID", userID, "command", command)
		_, err := c.Telegram.SendMessage(chatID, "Too many commands. Please wait a few seconds and try again.")
		return err
	}

	c.Logger.Info("Command received", "userID", userID, "command", command, "args", args)

	switch command {
	case "start", "help":
		_, err := c.Telegram.SendMessage(chatID, helpMessage)
		return err
	case "research":
		return c.handleResearch(ctx, chatID, args)
	case "research_stop":
		return c.handleStop(chatID)
	case "research_list":
		return c.handleList(chatID)
	case "research_history":
		return c.handleHistory(ctx, chatID)
	case "research_export":
		return c.handleExport(ctx, chatID, args)
	default:
		_, err := c.Telegram.SendMessage(chatID, "Unknown command. Type /help to see the list of available commands.")
		return err
	}
}
