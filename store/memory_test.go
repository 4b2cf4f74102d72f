package store_test

import (
	"context"
	"testing"

	"github.com/effective-security/mcpchat/pkg/llms"
	"github.com/effective-security/mcpchat/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MemoryStore(t *testing.T) {
	// Create a new in-memory store
	st := store.NewMemoryStore()

	chatID := "chat1"
	msg1 := llms.MessageFromTextParts(llms.RoleHuman, "Hello")
	msg2 := llms.MessageFromTextParts(llms.RoleAI, "Hi there!")

	ctx := context.Background()
	assert.Empty(t, st.Messages(ctx, chatID))
	require.NoError(t, st.Reset(ctx, chatID))

	require.NoError(t, st.Add(ctx, chatID, msg1))
	require.NoError(t, st.Add(ctx, chatID, msg2))

	// Retrieve messages from the store
	messages := st.Messages(ctx, chatID)
	require.Equal(t, 2, len(messages))
	assert.Equal(t, "Hello", messages[0].GetContent())
	assert.Equal(t, "Hi there!", messages[1].GetContent())

	// Other chats are isolated
	assert.Empty(t, st.Messages(ctx, "chat2"))
	require.NoError(t, st.Add(ctx, "chat2", msg1))
	assert.Equal(t, 2, len(st.Messages(ctx, chatID)))

	// Variadic append keeps order
	require.NoError(t, st.Add(ctx, chatID, msg1, msg2))
	messages = st.Messages(ctx, chatID)
	require.Equal(t, 4, len(messages))
	assert.Equal(t, llms.RoleHuman, messages[2].Role)
	assert.Equal(t, llms.RoleAI, messages[3].Role)

	// Reset the chat
	require.NoError(t, st.Reset(ctx, chatID))
	assert.Empty(t, st.Messages(ctx, chatID))
	assert.Equal(t, 1, len(st.Messages(ctx, "chat2")))
}
