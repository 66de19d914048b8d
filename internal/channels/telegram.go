package channels

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/quickclaw/quickclaw/internal/settings"
)

// Telegram talks to the Bot API through tgbotapi.
type Telegram struct {
	// APIEndpoint is a format string with token and method placeholders.
	APIEndpoint string
	HTTPClient  *http.Client
}

// BotInfo is the getMe result.
type BotInfo struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	FirstName       string `json:"firstName"`
	CanReadMessages bool   `json:"canReadMessages"`
}

// PendingUpdate summarizes one queued inbound update.
type PendingUpdate struct {
	UpdateID int       `json:"updateId"`
	From     string    `json:"from,omitempty"`
	Text     string    `json:"text,omitempty"`
	Date     time.Time `json:"date"`
}

func NewTelegram() *Telegram {
	return &Telegram{APIEndpoint: tgbotapi.APIEndpoint}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) bot(ctx context.Context, token string) *tgbotapi.BotAPI {
	endpoint := t.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot := &tgbotapi.BotAPI{
		Token:  strings.TrimSpace(token),
		Client: ctxClient{ctx: ctx, c: httpClientOrDefault(t.HTTPClient)},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(endpoint)
	return bot
}

// GetMe returns the bot behind token.
func (t *Telegram) GetMe(ctx context.Context, token string) (BotInfo, error) {
	if strings.TrimSpace(token) == "" {
		return BotInfo{}, fmt.Errorf("telegram token is empty")
	}
	u, err := t.bot(ctx, token).GetMe()
	if err != nil {
		return BotInfo{}, tokenError("getMe", err, token)
	}
	return BotInfo{
		ID:              u.ID,
		Username:        u.UserName,
		FirstName:       u.FirstName,
		CanReadMessages: u.CanReadAllGroupMessages,
	}, nil
}

// PendingUpdates peeks at up to limit queued updates without acknowledging them.
func (t *Telegram) PendingUpdates(ctx context.Context, token string, limit int) ([]PendingUpdate, error) {
	updates, err := t.bot(ctx, token).GetUpdates(tgbotapi.UpdateConfig{Limit: limit})
	if err != nil {
		return nil, tokenError("getUpdates", err, token)
	}
	out := make([]PendingUpdate, 0, len(updates))
	for _, u := range updates {
		p := PendingUpdate{UpdateID: u.UpdateID}
		if m := u.Message; m != nil {
			if m.From != nil {
				p.From = m.From.UserName
				if p.From == "" {
					p.From = m.From.FirstName
				}
			}
			p.Text = truncate(m.Text, 50)
			p.Date = time.Unix(int64(m.Date), 0).UTC()
		}
		out = append(out, p)
	}
	return out, nil
}

// Drain acknowledges everything queued so a fresh gateway starts from an
// empty inbox.
func (t *Telegram) Drain(ctx context.Context, token string) error {
	if _, err := t.bot(ctx, token).GetUpdates(tgbotapi.NewUpdate(-1)); err != nil {
		return tokenError("drain", err, token)
	}
	return nil
}

// tokenError masks token in err. Transport errors quote the request URL,
// which carries the token, and these messages end up in step details,
// history rows and HTTP responses.
func tokenError(op string, err error, token string) error {
	msg := err.Error()
	if tok := strings.TrimSpace(token); tok != "" {
		msg = strings.ReplaceAll(msg, tok, settings.MaskKey(tok))
	}
	return fmt.Errorf("telegram %s: %s", op, msg)
}

// ChatLink is the t.me deep link for a bot username.
func ChatLink(username string) string {
	return "https://t.me/" + strings.TrimPrefix(username, "@")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
