package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"chatline/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// inspect dumps the chat key space of a badger store as a table, without
// taking the write lock, so it can run next to a live server.
func main() {
	dbPath := flag.String("db", "/tmp/chatline/badger", "Path to badger DB")
	prefix := flag.String("prefix", "", "Prefix to scan (user:, chat:, member:, msg:; empty scans everything)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Secondary indexes and sequence counters carry no payload
			// worth rendering.
			if strings.HasPrefix(key, "idx:") || strings.HasPrefix(key, "seq:") {
				continue
			}

			err := item.Value(func(val []byte) error {
				kind, timestamp, detail := describe(key, val)
				table.Append([]string{key, kind, timestamp, detail})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// describe decodes one record based on its key family. A record that does
// not unmarshal is reported instead of aborting the whole scan.
func describe(key string, val []byte) (kind, timestamp, detail string) {
	switch {
	case strings.HasPrefix(key, "user:"):
		var user domain.User
		if err := json.Unmarshal(val, &user); err != nil {
			return "USER", "", "unreadable: " + err.Error()
		}
		return "USER", user.CreatedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%s <%s>", user.Username, user.Email)

	case strings.HasPrefix(key, "chat:"):
		var chat domain.Chat
		if err := json.Unmarshal(val, &chat); err != nil {
			return "CHAT", "", "unreadable: " + err.Error()
		}
		name := chat.Name
		if chat.HasGenericName() {
			name = "(private)"
		}
		return "CHAT", chat.CreatedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%s creator=%d", name, chat.CreatorID)

	case strings.HasPrefix(key, "member:"):
		var membership domain.Membership
		if err := json.Unmarshal(val, &membership); err != nil {
			return "MEMBER", "", "unreadable: " + err.Error()
		}
		watched := "never"
		if membership.LastWatchedAt != nil {
			watched = membership.LastWatchedAt.Format("2006-01-02 15:04:05")
		}
		return "MEMBER", membership.JoinedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("chat=%d user=%d watched=%s", membership.ChatID, membership.UserID, watched)

	case strings.HasPrefix(key, "msg:"):
		var message domain.Message
		if err := json.Unmarshal(val, &message); err != nil {
			return "MSG", "", "unreadable: " + err.Error()
		}
		content := message.Content
		if len(content) > 60 {
			content = content[:60] + "..."
		}
		return "MSG", message.SentAt.Format("15:04:05"),
			fmt.Sprintf("chat=%d author=%d %q", message.ChatID, message.AuthorID, content)
	}
	return "?", "", fmt.Sprintf("%d bytes", len(val))
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return db, nil
}
