package store

import (
	"context"
	"encoding/json"
	"path"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The redis store implements the MessageStore interface using Redis as the backend.
// Only the text of each message is persisted, which is enough to rebuild the
// visible transcript. Keys are structured as:
// - `/<prefix>/chatstore/messages/<chatID>` for storing chat messages

// maxStoredMessages bounds the transcript length kept per chat.
const maxStoredMessages = 50

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a MessageStore backed by Redis.
func NewRedisStore(client *redis.Client, prefix string) MessageStore {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

// messageModel is the persisted form of a chat message.
type messageModel struct {
	Role    llms.Role `json:"role"`
	Content string    `json:"content"`
}

func (m *redisStore) getRedisMessagesKey(chatID string) string {
	return path.Join(m.prefix, "chatstore", "messages", chatID)
}

func (m *redisStore) Messages(ctx context.Context, chatID string) []llms.Message {
	key := m.getRedisMessagesKey(chatID)
	// Get all messages in the list
	data, err := m.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "GetRedisMessages", "err", err.Error())
		return nil
	}

	var messages []llms.Message
	for _, item := range data {
		var msg messageModel
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "unmarshal message", "err", err.Error())
			continue
		}
		messages = append(messages, llms.MessageFromTextParts(msg.Role, msg.Content))
	}
	return messages
}

func (m *redisStore) Add(ctx context.Context, chatID string, msgs ...llms.Message) error {
	key := m.getRedisMessagesKey(chatID)
	pipe := m.client.Pipeline()
	for _, msg := range msgs {
		data, err := json.Marshal(messageModel{
			Role:    msg.Role,
			Content: msg.GetContent(),
		})
		if err != nil {
			return errors.Wrap(err, "failed to marshal message")
		}
		pipe.RPush(ctx, key, data)
	}
	// Keep only the most recent messages
	pipe.LTrim(ctx, key, -maxStoredMessages, -1)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to store messages in Redis")
	}
	return nil
}

func (m *redisStore) Reset(ctx context.Context, chatID string) error {
	key := m.getRedisMessagesKey(chatID)
	err := m.client.Del(ctx, key).Err()
	if err != nil {
		return errors.Wrap(err, "failed to reset chat in Redis")
	}
	return nil
}
