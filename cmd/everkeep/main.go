package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/everkeep/everkeep/app/repository"
	"github.com/everkeep/everkeep/internal/pkg/cache"
	"github.com/everkeep/everkeep/internal/pkg/database"
	"github.com/everkeep/everkeep/internal/pkg/env"
	"github.com/everkeep/everkeep/internal/pkg/mail"
	"github.com/everkeep/everkeep/internal/pkg/monitor"
	"github.com/everkeep/everkeep/internal/pkg/notify"
	"github.com/everkeep/everkeep/internal/pkg/router"
)

func main() {
	app, queue, manager := NewApplication()

	// Shut down workers before the HTTP server goes away.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		manager.Stop()
		queue.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *notify.Queue, *monitor.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "EverKeep",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app)

	// notification delivery workers
	queue := notify.NewMailQueue(mail.NewSenderFromEnv(), env.GetEnvInt("NOTIFY_WORKERS", 2))
	queue.Start()

	// periodic trigger sweep
	manager := monitor.GetManager(queue)
	manager.Start()

	return app, queue, manager
}
