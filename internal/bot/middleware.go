// Package bot provides middleware for the Telegram bot.
package bot

import (
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"battleship-bot/internal/config"
)

// privateUserCache tracks users who have used the bot in whitelisted groups,
// or were invited there. Game channels live in private chats, so these
// users must be let through in private.
var (
	privateUserCache = make(map[int64]bool)
	privateUserMu    sync.RWMutex
)

// AllowPrivateUser marks a user as allowed to use private chat.
func AllowPrivateUser(userID int64) {
	privateUserMu.Lock()
	defer privateUserMu.Unlock()
	privateUserCache[userID] = true
}

// IsPrivateUserAllowed checks if a user is allowed to use private chat.
func IsPrivateUserAllowed(userID int64) bool {
	privateUserMu.RLock()
	defer privateUserMu.RUnlock()
	return privateUserCache[userID]
}

// allowUpdate decides whether an update passes the whitelist. A group
// update from a whitelisted chat also admits the sender and the user they
// replied to (the invitee of a /battleship reply) to private chat.
func allowUpdate(cfg *config.Config, private bool, chatID, senderID, replyToID int64) bool {
	if private {
		return len(cfg.Whitelist.Chats) == 0 || IsPrivateUserAllowed(senderID)
	}
	if !cfg.IsChatAllowed(chatID) {
		return false
	}
	AllowPrivateUser(senderID)
	if replyToID != 0 {
		AllowPrivateUser(replyToID)
	}
	return true
}

// WhitelistMiddleware creates a middleware that checks if the chat is whitelisted.
func WhitelistMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			sender := c.Sender()

			if chat == nil || sender == nil {
				return nil
			}

			var replyTo int64
			if msg := c.Message(); msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
				replyTo = msg.ReplyTo.Sender.ID
			}

			if !allowUpdate(cfg, chat.Type == tele.ChatPrivate, chat.ID, sender.ID, replyTo) {
				log.Debug().
					Int64("chat_id", chat.ID).
					Int64("user_id", sender.ID).
					Msg("Ignoring update from non-whitelisted chat")
				return nil
			}

			return next(c)
		}
	}
}

// AdminMiddleware creates a middleware that checks if the user is an admin.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}

			if !cfg.IsAdmin(sender.ID) {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply("❌ Permission denied: admin only")
			}

			return next(c)
		}
	}
}

// LoggingMiddleware creates a middleware that logs all incoming messages.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug()
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			if cb := c.Callback(); cb != nil {
				logEvent = logEvent.Str("callback", cb.Data)
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received update")

			return next(c)
		}
	}
}

// RecoveryMiddleware creates a middleware that recovers from panics.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Msg("Recovered from panic in handler")
					if c.Callback() != nil {
						err = c.Respond(&tele.CallbackResponse{Text: "❌ Internal error, please try again"})
						return
					}
					err = c.Reply("❌ Internal error, please try again later")
				}
			}()
			return next(c)
		}
	}
}
