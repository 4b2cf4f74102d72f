// Package store keeps chat transcripts across queries, keyed by chat ID.
package store

import (
	"context"

	"github.com/effective-security/mcpchat/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "store")

// MessageStore keeps the transcript of a chat.
type MessageStore interface {
	// Messages returns the stored transcript for the chat.
	Messages(ctx context.Context, chatID string) []llms.Message
	// Add appends messages to the chat transcript.
	Add(ctx context.Context, chatID string, msgs ...llms.Message) error
	// Reset removes the chat transcript.
	Reset(ctx context.Context, chatID string) error
}
