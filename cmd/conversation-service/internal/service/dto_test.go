package service

import (
	"testing"

	"chatassistant/cmd/conversation-service/internal/biz"

	"github.com/stretchr/testify/assert"
)

func TestChatRequest_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		req     ChatRequest
		message string
		convID  int64
	}{
		{
			name:    "message field wins",
			req:     ChatRequest{Message: "hi", ConversationID: 4, Messages: []LegacyMessage{{Role: "user", Content: "old"}}},
			message: "hi",
			convID:  4,
		},
		{
			name: "legacy picks last user entry",
			req: ChatRequest{Messages: []LegacyMessage{
				{Role: "user", Content: "first"},
				{Role: "assistant", Content: "reply"},
				{Role: "user", Content: "second"},
				{Role: "assistant", Content: "reply 2"},
			}},
			message: "second",
		},
		{
			name: "legacy without user entry",
			req:  ChatRequest{Messages: []LegacyMessage{{Role: "system", Content: "x"}}},
		},
		{
			name: "empty",
			req:  ChatRequest{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			message, convID := tt.req.resolve()
			assert.Equal(t, tt.message, message)
			assert.Equal(t, tt.convID, convID)
		})
	}
}

func TestToChatResponse_TitleOnlyWhenGenerated(t *testing.T) {
	resp := toChatResponse(&biz.ChatReply{ConversationID: 1, Response: "ok", Title: "kept"})
	assert.Empty(t, resp.Title)

	resp = toChatResponse(&biz.ChatReply{ConversationID: 1, Response: "ok", Title: "Trip", TitleGenerated: true})
	assert.Equal(t, "Trip", resp.Title)
}
