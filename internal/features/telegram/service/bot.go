package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "support-relay-backend/internal/common/errors"
	"support-relay-backend/internal/common/logger"
	"support-relay-backend/internal/domain/chat"
	identity "support-relay-backend/internal/features/identity/service"
	"support-relay-backend/internal/platform/telegram"
)

const (
	unregisteredText    = "Please use /start command first to register with our support platform."
	acknowledgementText = "Your message has been received by our support team. We will respond shortly."
	errorText           = "An error occurred. Please try again later."
)

// Sender delivers plain text to a Telegram chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Identity is the part of the identity resolver the bot needs.
type Identity interface {
	ResolveTelegramActor(ctx context.Context, p identity.TelegramProfile) (*chat.Actor, error)
	TelegramActor(ctx context.Context, externalID string) (*chat.Actor, error)
	IssueOneTimeToken(ctx context.Context, actorID int64) (*chat.OneTimeToken, error)
}

// Conversations picks the conversation inbound Telegram text lands in.
type Conversations interface {
	LatestOrCreate(ctx context.Context, ownerID int64) (*chat.Conversation, error)
}

// Relay submits a message on behalf of a principal.
type Relay interface {
	SubmitMessage(ctx context.Context, p chat.Principal, conversationID int64, body string) (*chat.Message, error)
}

// Bot turns Bot API updates into registrations and relayed messages.
type Bot struct {
	api           Sender
	identity      Identity
	conversations Conversations
	relay         Relay
	authURL       string
}

// NewBot wires the bot. authURL is the web hand-off link without the token,
// e.g. https://support.example.com:443/User/auth?token=
func NewBot(api Sender, identity Identity, conversations Conversations, relay Relay, authURL string) *Bot {
	return &Bot{
		api:           api,
		identity:      identity,
		conversations: conversations,
		relay:         relay,
		authURL:       authURL,
	}
}

// AuthURL builds the hand-off link prefix for a public origin.
func AuthURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/User/auth?token="
}

// HandleUpdate processes one update. Failures are logged and reported to the
// chat; they are never returned so the Bot API does not redeliver.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	msg := u.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.From.IsBot {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	log := logger.Component("telegram").With().
		Int64("update_id", u.UpdateID).
		Int64("chat_id", msg.Chat.ID).
		Logger()

	if cmd, ok := command(text); ok {
		if cmd != "start" {
			return
		}
		if err := b.start(ctx, msg); err != nil {
			log.Error().Err(err).Msg("Start command failed")
			b.reply(ctx, msg.Chat.ID, errorText)
		}
		return
	}

	if err := b.relayText(ctx, msg, text); err != nil {
		log.Error().Err(err).Msg("Relaying Telegram message failed")
		b.reply(ctx, msg.Chat.ID, errorText)
	}
}

func (b *Bot) start(ctx context.Context, msg *telegram.Message) error {
	a, err := b.identity.ResolveTelegramActor(ctx, identity.TelegramProfile{
		ExternalID:  strconv.FormatInt(msg.From.ID, 10),
		Username:    msg.From.Username,
		DisplayName: msg.From.DisplayName(),
	})
	if err != nil {
		return err
	}
	tok, err := b.identity.IssueOneTimeToken(ctx, a.ID)
	if err != nil {
		return err
	}

	name := msg.From.FirstName
	if name == "" {
		name = a.Name()
	}
	b.reply(ctx, msg.Chat.ID, welcomeText(name, b.authURL+tok.Token, tok.Token))
	return nil
}

func (b *Bot) relayText(ctx context.Context, msg *telegram.Message, text string) error {
	a, err := b.identity.TelegramActor(ctx, strconv.FormatInt(msg.From.ID, 10))
	if errors.Is(err, apperrors.ErrNotFound) {
		b.reply(ctx, msg.Chat.ID, unregisteredText)
		return nil
	}
	if err != nil {
		return err
	}

	conv, err := b.conversations.LatestOrCreate(ctx, a.ID)
	if err != nil {
		return err
	}
	if _, err := b.relay.SubmitMessage(ctx, chat.Principal{ActorID: a.ID, Role: a.Kind}, conv.ID, text); err != nil {
		return err
	}
	b.reply(ctx, msg.Chat.ID, acknowledgementText)
	return nil
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.api.SendMessage(ctx, chatID, text); err != nil {
		logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Bot reply failed")
	}
}

// command extracts the command name from "/name@bot args".
func command(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), true
}

func welcomeText(firstName, link, token string) string {
	return fmt.Sprintf("Welcome to the support platform, %s!\n\nClick the link below to authenticate in the web platform:\n%s\n\nOr copy and paste this code: %s",
		firstName, link, token)
}
