package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"CryptoSentinel/internal/metrics"
)

// Telegram payload limits, counted in characters.
const (
	MaxCaptionLen = 1024
	MaxTextLen    = 4000
)

// Options configures a TelegramNotifier.
type Options struct {
	BotToken       string
	ChatID         string
	APIURL         string // empty for the public Bot API
	ProxyURL       string
	TextTimeout    time.Duration
	ImageTimeout   time.Duration
	MaxRetries     int
	SendsPerSecond float64 // 0 disables pacing
}

// TelegramNotifier delivers reports to one chat via the Telegram Bot API.
type TelegramNotifier struct {
	bot          *bot.Bot
	chatID       string
	textTimeout  time.Duration
	imageTimeout time.Duration
	maxRetries   int
	backoff      time.Duration
	limiter      *rate.Limiter
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(opts Options) (*TelegramNotifier, error) {
	transport := &http.Transport{}
	if opts.ProxyURL != "" {
		if u, err := url.Parse(opts.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}

	botOpts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(30*time.Second, &http.Client{Transport: transport}),
		bot.WithErrorsHandler(func(err error) {
			logrus.WithError(err).Warn("telegram polling error")
		}),
	}
	if opts.APIURL != "" {
		botOpts = append(botOpts, bot.WithServerURL(opts.APIURL))
	}
	b, err := bot.New(opts.BotToken, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	limit := rate.Inf
	if opts.SendsPerSecond > 0 {
		limit = rate.Limit(opts.SendsPerSecond)
	}
	return &TelegramNotifier{
		bot:          b,
		chatID:       opts.ChatID,
		textTimeout:  opts.TextTimeout,
		imageTimeout: opts.ImageTimeout,
		maxRetries:   opts.MaxRetries,
		backoff:      time.Second,
		limiter:      rate.NewLimiter(limit, 3),
	}, nil
}

// Notify sends text, with image as a photo when present. Text that does not fit in the
// caption follows as regular messages. Failures are logged and reported as false.
func (t *TelegramNotifier) Notify(ctx context.Context, text string, image []byte) bool {
	ok := t.deliver(ctx, text, image)
	result := "ok"
	if !ok {
		result = "error"
	}
	metrics.NotificationsTotal.WithLabelValues(result).Inc()
	return ok
}

func (t *TelegramNotifier) deliver(ctx context.Context, text string, image []byte) bool {
	if len(image) > 0 {
		caption, rest := SplitCaption(text)
		if err := t.SendPhoto(ctx, image, caption); err != nil {
			logrus.WithError(err).Error("telegram photo send failed")
			return false
		}
		text = rest
	}

	for _, chunk := range SplitText(text, MaxTextLen) {
		if err := t.Send(ctx, chunk); err != nil {
			logrus.WithError(err).Error("telegram message send failed")
			return false
		}
	}
	return true
}

// Send sends one text message. Callers must keep it within MaxTextLen.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	send := func(mode models.ParseMode, text string) error {
		return t.withRetry(ctx, "sendMessage", t.textTimeout, func(ctx context.Context) error {
			_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:    t.chatID,
				Text:      text,
				ParseMode: mode,
			})
			return err
		})
	}
	return withPlainFallback(text, send)
}

// SendPhoto uploads a PNG with a caption of at most MaxCaptionLen characters.
func (t *TelegramNotifier) SendPhoto(ctx context.Context, image []byte, caption string) error {
	send := func(mode models.ParseMode, caption string) error {
		return t.withRetry(ctx, "sendPhoto", t.imageTimeout, func(ctx context.Context) error {
			_, err := t.bot.SendPhoto(ctx, &bot.SendPhotoParams{
				ChatID:    t.chatID,
				Photo:     &models.InputFileUpload{Filename: "market_overview.png", Data: bytes.NewReader(image)},
				Caption:   caption,
				ParseMode: mode,
			})
			return err
		})
	}
	return withPlainFallback(caption, send)
}

// withPlainFallback retries once without parse mode when Telegram rejects the markup,
// typically because a split cut through an HTML tag.
func withPlainFallback(text string, send func(mode models.ParseMode, text string) error) error {
	err := send(models.ParseModeHTML, text)
	if errors.Is(err, bot.ErrorBadRequest) {
		logrus.WithError(err).Warn("telegram rejected HTML, resending as plain text")
		return send("", StripHTML(text))
	}
	return err
}

var (
	htmlTag      = regexp.MustCompile(`<[^<>]*>`)
	headFragment = regexp.MustCompile(`^[^<>]*>`)
	tailFragment = regexp.MustCompile(`(<[^<>]*|&[#0-9A-Za-z]*)$`)
	headEntity   = regexp.MustCompile(`^(amp|mp|p|lt|gt|t|#39|39|9|#34|34|4);`)
)

// StripHTML turns a Telegram HTML chunk into plain text. Chunks may begin or end
// inside a tag or an entity; those fragments are dropped.
func StripHTML(s string) string {
	// Rendered text escapes '<' and '>', so any raw bracket belongs to markup.
	s = headFragment.ReplaceAllString(s, "")
	s = headEntity.ReplaceAllString(s, "")
	s = tailFragment.ReplaceAllString(s, "")
	s = htmlTag.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}

// withRetry runs fn with exponential backoff. Bad requests are not retried.
func (t *TelegramNotifier) withRetry(ctx context.Context, method string, timeout time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error
	for i := 0; i <= t.maxRetries; i++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		lastErr = t.call(ctx, timeout, fn)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, bot.ErrorBadRequest) || i == t.maxRetries {
			break
		}
		backoff := t.backoff * time.Duration(1<<uint(i))
		logrus.WithFields(logrus.Fields{
			"method":  method,
			"attempt": fmt.Sprintf("%d/%d", i+1, t.maxRetries+1),
			"retry":   backoff,
		}).WithError(lastErr).Warn("telegram send failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%s: %w", method, lastErr)
}

func (t *TelegramNotifier) call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

// SplitCaption returns the first MaxCaptionLen characters of text and the remainder.
func SplitCaption(text string) (caption, rest string) {
	r := []rune(text)
	if len(r) <= MaxCaptionLen {
		return text, ""
	}
	return string(r[:MaxCaptionLen]), string(r[MaxCaptionLen:])
}

// SplitText cuts text into consecutive chunks of at most size characters.
func SplitText(text string, size int) []string {
	r := []rune(text)
	chunks := make([]string, 0, len(r)/size+1)
	for len(r) > 0 {
		n := min(size, len(r))
		chunks = append(chunks, string(r[:n]))
		r = r[n:]
	}
	return chunks
}
