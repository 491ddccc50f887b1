package transport

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strconv"

	"chatline/domain"
	cerrors "chatline/errors"
	"chatline/runtime"
	"chatline/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const defaultSearchLimit = 20

// Handler wires the services onto a fiber application.
type Handler struct {
	log        *slog.Logger
	auth       services.IAuthService
	chats      services.IChatService
	engine     *runtime.Engine
	bufferSize int
}

func NewHandler(
	log *slog.Logger,
	auth services.IAuthService,
	chats services.IChatService,
	engine *runtime.Engine,
	bufferSize int,
) *Handler {
	return &Handler{
		log:        log,
		auth:       auth,
		chats:      chats,
		engine:     engine,
		bufferSize: bufferSize,
	}
}

func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api")

	api.Post("/auth/register", h.register)
	api.Post("/auth/login", h.login)

	api.Get("/chats/user/:userId", h.userChats)
	api.Post("/chats/create-private", h.createPrivateChat)
	api.Post("/chats/create-group", h.createGroupChat)
	api.Post("/chats/:chatId/read/:userId", h.markRead)
	api.Delete("/chats/:chatId", h.deleteChat)

	api.Get("/messages/:chatId", h.history)
	api.Get("/messages/:chatId/search", h.searchHistory)

	api.Get("/ws", websocket.New(h.realtime))
}

type registerBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

func (h *Handler) register(c *fiber.Ctx) error {
	var body registerBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}

	user, err := h.auth.Register(body.Username, body.Password, body.Email)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       user.ID,
		"username": user.Username,
	})
}

// login answers the bare numeric user id, which the realtime client
// echoes back as authorId on every envelope.
func (h *Handler) login(c *fiber.Ctx) error {
	var body registerBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}

	user, err := h.auth.Login(body.Username, body.Password)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.SendString(strconv.FormatInt(user.ID, 10))
}

func (h *Handler) userChats(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("userId")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	summaries, err := h.chats.UserChats(int64(userID))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(summaries)
}

func (h *Handler) createPrivateChat(c *fiber.Ctx) error {
	creatorID, err := strconv.ParseInt(c.Query("creatorId"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid creator id")
	}

	ref, err := h.chats.CreatePrivateChat(creatorID, c.Query("targetUsername"))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ref)
}

func (h *Handler) createGroupChat(c *fiber.Ctx) error {
	creatorID, err := strconv.ParseInt(c.Query("creatorId"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid creator id")
	}

	var usernames []string
	if err := c.BodyParser(&usernames); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "body must be a JSON array of usernames")
	}

	ref, err := h.chats.CreateGroupChat(creatorID, c.Query("groupName"), usernames)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ref)
}

func (h *Handler) markRead(c *fiber.Ctx) error {
	chatID, err := c.ParamsInt("chatId")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
	}
	userID, err := c.ParamsInt("userId")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.chats.MarkRead(domain.ChatID(chatID), int64(userID)); err != nil {
		return h.mapError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) deleteChat(c *fiber.Ctx) error {
	chatID, err := c.ParamsInt("chatId")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
	}

	if err := h.chats.DeleteChat(domain.ChatID(chatID)); err != nil {
		return h.mapError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) history(c *fiber.Ctx) error {
	chatID, err := c.ParamsInt("chatId")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
	}

	entries, err := h.chats.History(domain.ChatID(chatID))
	if err != nil {
		return h.mapError(c, err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return c.JSON(entries)
}

func (h *Handler) searchHistory(c *fiber.Ctx) error {
	chatID, err := c.ParamsInt("chatId")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
	}
	terms := c.Query("q")
	if terms == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing query")
	}
	limit := c.QueryInt("limit", defaultSearchLimit)

	entries, err := h.chats.SearchHistory(c.Context(), domain.ChatID(chatID), terms, limit)
	if err != nil {
		return h.mapError(c, err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return c.JSON(entries)
}

// realtime runs for the lifetime of one websocket connection. Unbinding
// happens on every exit path, normal close included.
func (h *Handler) realtime(conn *websocket.Conn) {
	client := NewClient(conn, h.bufferSize, h.log)
	defer func() {
		h.engine.Disconnect(client)
		client.Close()
	}()

	go client.WritePump()
	client.ReadPump(context.Background(), h.engine)
}

// mapError translates service sentinels into HTTP statuses.
func (h *Handler) mapError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case stderrors.Is(err, cerrors.ErrUserNotFound),
		stderrors.Is(err, cerrors.ErrChatNotFound),
		stderrors.Is(err, cerrors.ErrMembershipNotFound):
		status = fiber.StatusNotFound
	case stderrors.Is(err, cerrors.ErrUsernameTaken):
		status = fiber.StatusConflict
	case stderrors.Is(err, cerrors.ErrSelfChat),
		stderrors.Is(err, cerrors.ErrInvalidEnvelope):
		status = fiber.StatusBadRequest
	case stderrors.Is(err, cerrors.ErrInvalidCredentials):
		status = fiber.StatusUnauthorized
	}

	if status == fiber.StatusInternalServerError {
		h.log.Error("Request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
