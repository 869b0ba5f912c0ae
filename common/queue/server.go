package queue

import (
	"github.com/hibiken/asynq"
)

// ParseRedisURL turns REDIS_URL into asynq connection options.
func ParseRedisURL(url string) (asynq.RedisConnOpt, error) {
	return asynq.ParseRedisURI(url)
}

// NewServer returns a worker server that prefers the critical queue.
func NewServer(redisOpt asynq.RedisConnOpt, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
			},
		},
	)
}

// NewServeMux routes every task type this service produces.
func NewServeMux(sender ConfirmationSender) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeOrderConfirmation, HandleOrderConfirmation(sender))
	return mux
}
