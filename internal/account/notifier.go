// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"log/slog"
)

// Notifier delivers email confirmation links.
type Notifier interface {
	SendVerification(ctx context.Context, account *Account, link string) error
}

// LogNotifier writes confirmation links to the log instead of sending mail.
// It is the development default.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendVerification logs link at info level.
func (notifier *LogNotifier) SendVerification(ctx context.Context, account *Account, link string) error {
	notifier.logger.InfoContext(ctx, "account_verification_link",
		slog.String("account_id", account.ID),
		slog.String("email", account.Email),
		slog.String("link", link),
	)
	return nil
}
