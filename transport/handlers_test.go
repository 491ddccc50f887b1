package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatline/domain"
	"chatline/repositories"
	"chatline/runtime"
	"chatline/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type appFixture struct {
	app      *fiber.App
	messages *repositories.MessageRepository
}

func newAppFixture(t *testing.T) appFixture {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := testLogger()
	users, err := repositories.NewUserRepository(db)
	req.NoError(err)
	t.Cleanup(func() { _ = users.Close() })
	chats, err := repositories.NewChatRepository(db)
	req.NoError(err)
	t.Cleanup(func() { _ = chats.Close() })
	memberships := repositories.NewMembershipRepository(db)
	messages := repositories.NewMessageRepository(db, log)

	registry := runtime.NewRegistry()
	engine := runtime.NewEngine(log, users, chats, memberships, messages, registry, nil, nil, time.Second)
	auth := services.NewAuthService(users)
	chatSvc := services.NewChatService(log, users, chats, memberships, messages, nil)

	app := fiber.New()
	NewHandler(log, auth, chatSvc, engine, 16).Register(app)
	return appFixture{app: app, messages: messages}
}

func (f appFixture) do(t *testing.T, method, target string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	request := httptest.NewRequest(method, target, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	response, err := f.app.Test(request, -1)
	require.NoError(t, err)
	return response
}

func (f appFixture) registerUser(t *testing.T, username string) int64 {
	t.Helper()
	response := f.do(t, http.MethodPost, "/api/auth/register", registerBody{
		Username: username, Password: "pw", Email: username + "@example.com",
	})
	require.Equal(t, http.StatusCreated, response.StatusCode)

	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.NewDecoder(response.Body).Decode(&created))
	return created.ID
}

func Test_Register_And_Login_Roundtrip(t *testing.T) {
	req := require.New(t)
	f := newAppFixture(t)

	aliceID := f.registerUser(t, "alice")

	response := f.do(t, http.MethodPost, "/api/auth/login", registerBody{
		Username: "alice", Password: "pw",
	})
	req.Equal(http.StatusOK, response.StatusCode)
	body, err := io.ReadAll(response.Body)
	req.NoError(err)
	req.Equal(fmt.Sprintf("%d", aliceID), string(body))

	response = f.do(t, http.MethodPost, "/api/auth/login", registerBody{
		Username: "alice", Password: "wrong",
	})
	req.Equal(http.StatusUnauthorized, response.StatusCode)
}

func Test_Register_Duplicate_Username_Conflicts(t *testing.T) {
	req := require.New(t)
	f := newAppFixture(t)

	f.registerUser(t, "alice")
	response := f.do(t, http.MethodPost, "/api/auth/register", registerBody{
		Username: "alice", Password: "pw", Email: "other@example.com",
	})
	req.Equal(http.StatusConflict, response.StatusCode)
}

func Test_Chat_Lifecycle_Over_HTTP(t *testing.T) {
	req := require.New(t)
	f := newAppFixture(t)

	aliceID := f.registerUser(t, "alice")
	bobID := f.registerUser(t, "bob")

	response := f.do(t, http.MethodPost,
		fmt.Sprintf("/api/chats/create-private?creatorId=%d&targetUsername=bob", aliceID), nil)
	req.Equal(http.StatusCreated, response.StatusCode)
	var ref services.ChatRef
	req.NoError(json.NewDecoder(response.Body).Decode(&ref))
	req.Equal("bob", ref.ChatName)

	req.NoError(f.messages.StoreMessage(domain.Message{
		ID:       uuid.New(),
		ChatID:   ref.ID,
		AuthorID: aliceID,
		Content:  "hi",
		SentAt:   time.Now().UTC(),
	}))

	// Bob sees the chat unread with the author-prefixed preview.
	response = f.do(t, http.MethodGet, fmt.Sprintf("/api/chats/user/%d", bobID), nil)
	req.Equal(http.StatusOK, response.StatusCode)
	var summaries []domain.ChatSummary
	req.NoError(json.NewDecoder(response.Body).Decode(&summaries))
	req.Len(summaries, 1)
	req.True(summaries[0].HasUnread)
	req.Equal("alice: hi", summaries[0].LastMessage)

	response = f.do(t, http.MethodPost,
		fmt.Sprintf("/api/chats/%d/read/%d", ref.ID, bobID), nil)
	req.Equal(http.StatusNoContent, response.StatusCode)

	response = f.do(t, http.MethodGet, fmt.Sprintf("/api/chats/user/%d", bobID), nil)
	req.NoError(json.NewDecoder(response.Body).Decode(&summaries))
	req.False(summaries[0].HasUnread)

	response = f.do(t, http.MethodGet, fmt.Sprintf("/api/messages/%d", ref.ID), nil)
	req.Equal(http.StatusOK, response.StatusCode)
	var history []domain.HistoryEntry
	req.NoError(json.NewDecoder(response.Body).Decode(&history))
	req.Len(history, 1)
	req.Equal("alice", history[0].Author)

	response = f.do(t, http.MethodDelete, fmt.Sprintf("/api/chats/%d", ref.ID), nil)
	req.Equal(http.StatusNoContent, response.StatusCode)

	response = f.do(t, http.MethodGet, fmt.Sprintf("/api/messages/%d", ref.ID), nil)
	req.Equal(http.StatusOK, response.StatusCode)
	req.NoError(json.NewDecoder(response.Body).Decode(&history))
	req.Empty(history)
}

func Test_Create_Group_With_Unknown_Member_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newAppFixture(t)

	aliceID := f.registerUser(t, "alice")
	response := f.do(t, http.MethodPost,
		fmt.Sprintf("/api/chats/create-group?creatorId=%d&groupName=plans", aliceID),
		[]string{"nobody"})
	req.Equal(http.StatusNotFound, response.StatusCode)
}

func Test_Delete_Unknown_Chat_Is_NotFound(t *testing.T) {
	req := require.New(t)
	f := newAppFixture(t)

	response := f.do(t, http.MethodDelete, "/api/chats/999", nil)
	req.Equal(http.StatusNotFound, response.StatusCode)
}
