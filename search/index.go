// Package search maintains a full-text index over persisted messages.
// The index is a side effect of ingestion: it is best-effort, and losing
// it never loses a message.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"chatline/domain"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

type Index struct {
	mu     sync.Mutex
	writer *bluge.Writer
	log    *slog.Logger
}

// Open creates or reopens the Bluge index at path.
func Open(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &Index{writer: writer, log: log}, nil
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Close()
}

// IndexMessage upserts one message document. The chat id is indexed as a
// keyword so queries can be scoped to a single conversation.
func (i *Index) IndexMessage(message domain.Message, author string) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField("chat", strconv.FormatInt(int64(message.ChatID), 10)).StoreValue()).
		AddField(bluge.NewKeywordField("author", author).StoreValue()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("time", message.SentAt.Format(domain.ClockFormat)).StoreValue())

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Update(doc.ID(), doc)
}

// DeleteMessages drops the documents of the given message ids, typically
// as part of a chat cascade delete.
func (i *Index) DeleteMessages(ids []uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, id := range ids {
		doc := bluge.NewDocument(id.String())
		if err := i.writer.Delete(doc.ID()); err != nil {
			return err
		}
	}
	return nil
}

// Search returns up to limit messages of one chat matching the terms,
// best score first.
func (i *Index) Search(ctx context.Context, chatID domain.ChatID, terms string, limit int) ([]domain.HistoryEntry, error) {
	i.mu.Lock()
	reader, err := i.writer.Reader()
	i.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("search reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Closing search reader failed", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(strconv.FormatInt(int64(chatID), 10)).SetField("chat")).
		AddMust(bluge.NewMatchQuery(terms).SetField("content"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var entries []domain.HistoryEntry
	match, err := iterator.Next()
	for err == nil && match != nil {
		var entry domain.HistoryEntry
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "time":
				entry.Time = string(value)
			case "author":
				entry.Author = string(value)
			case "content":
				entry.Content = string(value)
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		entries = append(entries, entry)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}
