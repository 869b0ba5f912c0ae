// Command worker processes queued order confirmations.
package main

import (
	"context"

	"github.com/ticketbooth-services/common/config"
	"github.com/ticketbooth-services/common/container"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/common/queue"
)

func main() {
	cfg := config.Load()
	log := logger.Default().With("service", "worker")

	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL is required to run the worker")
	}
	redisOpt, err := queue.ParseRedisURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("invalid REDIS_URL", "error", err)
	}

	c, err := container.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("failed to build container", "error", err)
	}
	defer c.Close()

	srv := queue.NewServer(redisOpt, 10)
	log.Info("worker started", "queues", []string{queue.QueueCritical, queue.QueueDefault})
	// Run blocks until SIGTERM or SIGINT.
	if err := srv.Run(queue.NewServeMux(c.Sender)); err != nil {
		log.Fatal("worker stopped", "error", err)
	}
}
