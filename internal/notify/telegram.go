package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mediumpilot/internal/pipeline"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	telegramMessageMaxLength = 4096
	truncatedSuffix          = "\n…"
)

type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram sends cycle reports to an operator chat.
type Telegram struct {
	sender Sender
	chatID int64
	log    *slog.Logger
}

func NewTelegram(token string, chatID int64, log *slog.Logger, opts ...bot.Option) (*Telegram, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("chat ID is empty")
	}

	b, err := bot.New(token, append([]bot.Option{bot.WithSkipGetMe()}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return newTelegram(b, chatID, log), nil
}

func newTelegram(sender Sender, chatID int64, log *slog.Logger) *Telegram {
	return &Telegram{sender: sender, chatID: chatID, log: log}
}

func (t *Telegram) ReportCycle(ctx context.Context, report *pipeline.Report) error {
	text := FormatReport(report)

	if _, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	t.log.DebugContext(ctx, "Cycle report is sent",
		"cycleID", report.CycleID,
		"chatID", t.chatID,
		"textLen", len(text))

	return nil
}

// FormatReport renders published and failed users as a MarkdownV2 message.
func FormatReport(report *pipeline.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📣 *Publish cycle* %s\n", escapeMarkdownV2(shortID(report.CycleID)))
	fmt.Fprintf(&b, "%s\n\n", escapeMarkdownV2(fmt.Sprintf("published: %d, skipped: %d, failed: %d",
		report.Count(pipeline.StatusPublished),
		report.Count(pipeline.StatusSkipped),
		report.Count(pipeline.StatusFailed))))

	for _, r := range report.Results {
		var line string

		switch r.Status {
		case pipeline.StatusPublished:
			line = fmt.Sprintf("✅ %s – %s",
				escapeMarkdownV2(r.UserID),
				escapeMarkdownV2(r.Title))
		case pipeline.StatusFailed:
			reason := r.Reason
			if r.Err != nil {
				reason += ": " + r.Err.Error()
			}
			line = fmt.Sprintf("❌ %s – %s",
				escapeMarkdownV2(r.UserID),
				escapeMarkdownV2(reason))
		default:
			continue
		}

		if b.Len()+len(line)+1+len(truncatedSuffix) > telegramMessageMaxLength {
			b.WriteString(truncatedSuffix)
			break
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}
