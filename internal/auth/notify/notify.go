// Package notify delivers one-time codes to users.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/jobtab/pkg/slogx"
)

// OTPSender delivers a password reset code to an email address.
type OTPSender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// LogSender records that a code was sent without sending anything. The code
// itself is never logged.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) SendOTP(ctx context.Context, email, _ string) error {
	slogx.FromContext(ctx, s.Logger).Info("otp_dispatched",
		"channel", "log",
		"to", slogx.MaskEmail(email),
	)
	return nil
}

// WebhookSender POSTs the code to a mail relay.
type WebhookSender struct {
	URL    string
	Client *http.Client
}

type webhookPayload struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Template string `json:"template"`
}

func (s WebhookSender) SendOTP(ctx context.Context, email, code string) error {
	body, err := json.Marshal(webhookPayload{Email: email, Code: code, Template: "password_reset"})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Async hands each send to a goroutine and returns immediately, so the
// caller's latency does not depend on delivery. Failures are logged.
type Async struct {
	inner   OTPSender
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(inner OTPSender, logger *slog.Logger, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{inner: inner, logger: logger, timeout: timeout}
}

// SendOTP always returns nil.
func (a *Async) SendOTP(ctx context.Context, email, code string) error {
	logger := slogx.FromContext(ctx, a.logger)

	// The request context is cancelled as soon as the response is written
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()

		if err := a.inner.SendOTP(sendCtx, email, code); err != nil {
			logger.Warn("otp_delivery_failed", "to", slogx.MaskEmail(email), "err", err)
		}
	}()
	return nil
}

// Wait blocks until in-flight sends finish or ctx is done.
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
