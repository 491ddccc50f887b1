package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatline/internal"
	"chatline/repositories"
	"chatline/runtime"
	"chatline/runtime/workers"
	"chatline/search"
	"chatline/services"
	"chatline/transport"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & Search Index
	users, err := repositories.NewUserRepository(db)
	if err != nil {
		return fmt.Errorf("user repository: %w", err)
	}
	defer func() { _ = users.Close() }()
	chats, err := repositories.NewChatRepository(db)
	if err != nil {
		return fmt.Errorf("chat repository: %w", err)
	}
	defer func() { _ = chats.Close() }()
	memberships := repositories.NewMembershipRepository(db)
	messages := repositories.NewMessageRepository(db, log)

	index, err := search.Open(config.BlugeFilepath, log)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	// 4. Moderation, Registry & Engine
	moderator, err := runtime.BuildModerator(log, charReplacement)
	if err != nil {
		return fmt.Errorf("moderator setup failed: %w", err)
	}

	registry := runtime.NewRegistry()
	engine := runtime.NewEngine(
		log, users, chats, memberships, messages,
		registry, moderator, index, config.SendTimeout,
	)

	authService := services.NewAuthService(users)
	chatService := services.NewChatService(log, users, chats, memberships, messages, index)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Supervision
	// Run blocks until every worker drains, so it gets its own goroutine.
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewHealthMonitoringWorker(log, registry, config.MetricInterval))
	go sup.Run(ctx)

	// 7. HTTP & Realtime Server
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler := transport.NewHandler(log, authService, chatService, engine, config.ConnectionBufferSize)
	handler.Register(app)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := app.Listen(address); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	if err := app.Shutdown(); err != nil {
		log.Warn("Server shutdown was not clean", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
