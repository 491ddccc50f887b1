package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_SortSummaries_UnreadFirst_ThenRecency(t *testing.T) {
	req := require.New(t)
	summaries := []ChatSummary{
		{ID: 1, HasUnread: true, LastMessageTime: "2025-01-01T09:00:00"},
		{ID: 2, HasUnread: false, LastMessageTime: "2025-01-02T09:00:00"},
		{ID: 3, HasUnread: true, LastMessageTime: "2025-01-03T09:00:00"},
		{ID: 4, HasUnread: false, LastMessageTime: "2025-01-01T08:00:00"},
	}

	SortSummaries(summaries)

	req.Equal(ChatID(3), summaries[0].ID)
	req.Equal(ChatID(1), summaries[1].ID)
	req.Equal(ChatID(2), summaries[2].ID)
	req.Equal(ChatID(4), summaries[3].ID)
	for _, s := range summaries[:2] {
		req.True(s.HasUnread)
	}
	for _, s := range summaries[2:] {
		req.False(s.HasUnread)
	}
}

func Test_SortSummaries_NoMessagesSentinelSinksLast(t *testing.T) {
	req := require.New(t)
	summaries := []ChatSummary{
		{ID: 1, LastMessageTime: NoMessagesTime},
		{ID: 2, LastMessageTime: "2025-06-30T23:59:59"},
	}

	SortSummaries(summaries)

	req.Equal(ChatID(2), summaries[0].ID)
	req.Equal(ChatID(1), summaries[1].ID)
}

func Test_InboundEnvelope_Validate(t *testing.T) {
	req := require.New(t)

	req.NoError(InboundEnvelope{AuthorID: 1, ChatID: 10, Content: "hi"}.Validate())
	req.Error(InboundEnvelope{AuthorID: 0, ChatID: 10, Content: "hi"}.Validate())
	req.Error(InboundEnvelope{AuthorID: 1, ChatID: -4, Content: "hi"}.Validate())
	req.Error(InboundEnvelope{AuthorID: 1, ChatID: 10}.Validate())
}
