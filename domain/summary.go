package domain

import (
	"sort"
	"time"
)

// SummaryTimeFormat is fixed-width and zero-padded, so lexicographic
// comparison of two formatted values orders them chronologically.
const SummaryTimeFormat = "2006-01-02T15:04:05"

// NoMessagesTime is the sentinel for chats without any message yet.
var NoMessagesTime = time.Unix(0, 0).UTC().Format(SummaryTimeFormat)

// ChatSummary is one display-ready row of a user's chat list.
type ChatSummary struct {
	ID              ChatID `json:"id"`
	ChatName        string `json:"chatName"`
	LastMessage     string `json:"lastMessage"`
	HasUnread       bool   `json:"hasUnread"`
	LastMessageTime string `json:"lastMessageTime"`
}

// SortSummaries orders a chat list in place: unread chats first, then
// most recent activity first within each tier.
func SortSummaries(summaries []ChatSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].HasUnread != summaries[j].HasUnread {
			return summaries[i].HasUnread
		}
		return summaries[i].LastMessageTime > summaries[j].LastMessageTime
	})
}

// HistoryEntry is one row of a chat's full message history.
type HistoryEntry struct {
	Time    string `json:"time"`
	Author  string `json:"author"`
	Content string `json:"content"`
}
