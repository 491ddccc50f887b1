package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chatline/domain"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `envconfig:"CHAT_SERVER_URL" default:"ws://localhost:8080/api/ws"`
	UserID    int64  `envconfig:"CHAT_USER_ID" required:"true"`
	ChatID    int64  `envconfig:"CHAT_CHAT_ID" required:"true"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"INFO"`
	// CHAT_COLOURS enables colorized output for better readability
	Colours bool `envconfig:"CHAT_COLOURS" default:"true"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the websocket client lifecycle, configuration loading, and the
// send/receive loops. This pattern ensures clean resource management and
// error propagation.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the realtime channel.
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	log.Info("Connected", "server", config.ServerURL, "chat", config.ChatID)

	// 4. Reception loop: render every delivery envelope as it arrives.
	go func() {
		defer stop()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Info("Server closed the connection", "error", err)
				return
			}

			var delivery domain.DeliveryEnvelope
			if err := json.Unmarshal(data, &delivery); err != nil {
				log.Warn("Unreadable frame", "error", err)
				continue
			}
			printDelivery(config, delivery)
		}
	}()

	// 5. Send loop: each stdin line becomes one message in the configured chat.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			content := strings.TrimSpace(line)
			if content == "" {
				continue
			}

			envelope := domain.InboundEnvelope{
				AuthorID: config.UserID,
				ChatID:   domain.ChatID(config.ChatID),
				Content:  content,
			}
			payload, err := json.Marshal(envelope)
			if err != nil {
				return exitRuntime, err
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return exitRuntime, fmt.Errorf("send failed: %w", err)
			}
		}
	}
}

func printDelivery(config Config, delivery domain.DeliveryEnvelope) {
	line := fmt.Sprintf("[%s] %s: %s", delivery.Time, delivery.Author, delivery.Content)
	if config.Colours {
		line = color.New(color.FgGreen).Render(line)
	}
	fmt.Println(line)
}
