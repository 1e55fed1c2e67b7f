package main

import (
	"log"

	"github.com/everkeep/everkeep/app/repository"
	"github.com/everkeep/everkeep/internal/pkg/cache"
	"github.com/everkeep/everkeep/internal/pkg/consensus"
	"github.com/everkeep/everkeep/internal/pkg/database"
	"github.com/everkeep/everkeep/internal/pkg/env"
	"github.com/everkeep/everkeep/internal/pkg/lifecycle"
	"github.com/everkeep/everkeep/internal/pkg/mail"
	"github.com/everkeep/everkeep/internal/pkg/monitor"
	"github.com/everkeep/everkeep/internal/pkg/notify"
)

// One-shot trigger sweep, meant to be run from cron or a scheduled job when
// the long-running server's built-in ticker is not wanted.
func main() {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	queue := notify.NewMailQueue(mail.NewSenderFromEnv(), 2)
	queue.Start()
	defer queue.Stop()

	repos := repository.GetGlobalRepositories()
	mon := monitor.New(
		repos,
		lifecycle.NewService(repos.Trigger, repos.Vault),
		consensus.NewService(repos.Executor),
		queue,
	)

	log.Println("Running trigger sweep...")
	if err := mon.RunOnce(); err != nil {
		log.Fatalf("Sweep finished with errors: %v", err)
	}
	log.Println("Sweep complete")
}
