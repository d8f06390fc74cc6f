package middleware

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"pingwatch/appctx"
)

const alertColor = "#EF5858"

type SlackAlertConfig struct {
	WebhookURL  string
	Environment string
	AppName     string
	LogsURL     string
}

// WebhookPoster delivers a Slack incoming-webhook message.
type WebhookPoster func(ctx context.Context, url string, msg *slack.WebhookMessage) error

type ErrorAlertMiddleware struct {
	config        SlackAlertConfig
	logger        *zap.Logger
	post          WebhookPoster
	now           func() time.Time
	alertedErrors map[string]time.Time // hash -> last alert time
	mutex         sync.Mutex
	alertCooldown time.Duration
	inflight      sync.WaitGroup
}

func NewErrorAlertMiddleware(config SlackAlertConfig, logger *zap.Logger) *ErrorAlertMiddleware {
	return &ErrorAlertMiddleware{
		config:        config,
		logger:        logger,
		post:          slack.PostWebhookContext,
		now:           time.Now,
		alertedErrors: make(map[string]time.Time),
		alertCooldown: 10 * time.Minute, // same error at most once per 10min
	}
}

// HTTPMiddleware recovers handler panics and reports them.
func (m *ErrorAlertMiddleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				m.reportPanic(r.Context(), fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path), rec)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// WrapEventHandler reports errors and panics raised while handling a single Discord event.
// The returned function never panics.
func (m *ErrorAlertMiddleware) WrapEventHandler(name string, handler func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				m.reportPanic(ctx, "Discord event: "+name, rec)
				err = fmt.Errorf("discord event %s panicked: %v", name, rec)
			}
		}()

		if err := handler(ctx); err != nil {
			m.alertOnError(ctx, err, "Discord event: "+name)
			return err
		}
		return nil
	}
}

func (m *ErrorAlertMiddleware) WrapBackgroundTask(taskName string, task func() error) func() error {
	return func() error {
		ctx := context.Background()
		defer func() {
			if rec := recover(); rec != nil {
				m.reportPanic(ctx, "Background task: "+taskName, rec)
			}
		}()

		if err := task(); err != nil {
			m.alertOnError(ctx, err, "Background task: "+taskName)
			return err
		}
		return nil
	}
}

// Wait blocks until every alert already handed to Slack has been delivered or failed.
func (m *ErrorAlertMiddleware) Wait() {
	m.inflight.Wait()
}

func (m *ErrorAlertMiddleware) alertOnError(ctx context.Context, err error, source string) {
	errorMsg := fmt.Sprintf("%s: %v", source, err)
	appctx.Logger(ctx, m.logger).Error("❌ handler failed", zap.String("source", source), zap.Error(err))

	hash := fmt.Sprintf("%x", md5.Sum([]byte(errorMsg)))

	m.mutex.Lock()
	now := m.now()
	if lastAlert, exists := m.alertedErrors[hash]; exists && now.Sub(lastAlert) < m.alertCooldown {
		m.mutex.Unlock()
		return
	}
	m.alertedErrors[hash] = now
	m.mutex.Unlock()

	m.dispatch(ctx, errorMsg, source)
}

func (m *ErrorAlertMiddleware) reportPanic(ctx context.Context, source string, r any) {
	errorMsg := fmt.Sprintf("%s: PANIC - %v", source, r)
	appctx.Logger(ctx, m.logger).Error("❌ recovered panic", zap.String("source", source), zap.Any("panic", r))
	m.dispatch(ctx, errorMsg, source+" (PANIC)")
}

func (m *ErrorAlertMiddleware) dispatch(ctx context.Context, errorMsg, source string) {
	if m.config.WebhookURL == "" {
		return
	}

	msg := m.buildAlert(ctx, errorMsg, source)
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()

		sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.post(sendCtx, m.config.WebhookURL, msg); err != nil {
			m.logger.Warn("failed to send Slack alert", zap.Error(err))
		}
	}()
}

func (m *ErrorAlertMiddleware) buildAlert(ctx context.Context, errorMsg, source string) *slack.WebhookMessage {
	envPrefix := ""
	if m.config.Environment == "dev" {
		envPrefix = "[dev] "
	}

	fields := []slack.AttachmentField{
		{Title: "Service", Value: m.config.AppName, Short: true},
		{Title: "Environment", Value: m.config.Environment, Short: true},
		{Title: "Context", Value: source},
	}
	if traceID, ok := appctx.GetTraceID(ctx); ok {
		fields = append(fields, slack.AttachmentField{Title: "Trace", Value: traceID, Short: true})
	}
	if guildID, ok := appctx.GetGuildID(ctx); ok {
		fields = append(fields, slack.AttachmentField{Title: "Guild", Value: guildID, Short: true})
	}

	attachment := slack.Attachment{
		Color:      alertColor,
		Fallback:   errorMsg,
		Title:      fmt.Sprintf("🚨 %s[%s] Error Alert", envPrefix, m.config.AppName),
		TitleLink:  m.config.LogsURL,
		Text:       fmt.Sprintf("```%s```", errorMsg),
		Fields:     fields,
		MarkdownIn: []string{"text"},
	}

	return &slack.WebhookMessage{Attachments: []slack.Attachment{attachment}}
}
