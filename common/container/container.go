// Package container builds every service of the process once and hands
// them to the handlers that need them.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ticketbooth-services/common/config"
	"github.com/ticketbooth-services/common/credential"
	"github.com/ticketbooth-services/common/db"
	"github.com/ticketbooth-services/common/email"
	"github.com/ticketbooth-services/common/inventory"
	"github.com/ticketbooth-services/common/jwt"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/common/metrics"
	"github.com/ticketbooth-services/common/pricing"
	"github.com/ticketbooth-services/common/queue"
	"github.com/ticketbooth-services/common/ratelimit"
	"github.com/ticketbooth-services/common/realtime"

	eventhandler "github.com/ticketbooth-services/services/event-lambda/handler"
	eventrepo "github.com/ticketbooth-services/services/event-lambda/repository"
	eventuc "github.com/ticketbooth-services/services/event-lambda/usecase"
	staffhandler "github.com/ticketbooth-services/services/staff-lambda/handler"
	staffrepo "github.com/ticketbooth-services/services/staff-lambda/repository"
	staffuc "github.com/ticketbooth-services/services/staff-lambda/usecase"
	tickethandler "github.com/ticketbooth-services/services/ticket-lambda/handler"
	ticketrepo "github.com/ticketbooth-services/services/ticket-lambda/repository"
	ticketuc "github.com/ticketbooth-services/services/ticket-lambda/usecase"
)

// Container owns the process-wide dependencies.
type Container struct {
	Config  *config.Config
	Log     *logger.Logger
	DB      *db.DB
	Metrics *metrics.Metrics
	Auth    *jwt.Manager

	// Sender delivers confirmations; the worker runs it for queued tasks.
	Sender *ticketuc.ConfirmationSender
	// Limiter is nil when REDIS_URL is not set.
	Limiter *ratelimit.Limiter

	TicketHandler *tickethandler.TicketHandler
	StaffHandler  *staffhandler.StaffHandler
	EventHandler  *eventhandler.EventHandler

	redis      *redis.Client
	dispatcher *queue.Dispatcher
}

// New opens the database, applies the schema and wires the use cases.
// Confirmations go through the asynq queue when REDIS_URL is set and are
// sent in-process otherwise.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	conn, err := db.Open(ctx, db.Config{
		Driver:     db.Driver(cfg.DBDriver),
		Server:     cfg.DBServer,
		Port:       cfg.DBPort,
		Database:   cfg.DBName,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	c := &Container{
		Config:  cfg,
		Log:     log,
		DB:      conn,
		Metrics: metrics.New(),
		Auth:    jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL),
	}

	ledger := inventory.NewLedger(conn)
	issuer := credential.NewIssuer(cfg.QRSize)
	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, log)
	broadcaster := realtime.New(realtime.Config{
		PublishKey:   cfg.PubNubPublishKey,
		SubscribeKey: cfg.PubNubSubscribeKey,
		SecretKey:    cfg.PubNubSecretKey,
	}, log)

	tickets := ticketrepo.NewTicketRepository(conn)
	c.Sender = ticketuc.NewConfirmationSender(tickets, issuer, mailer, c.Metrics, log)

	var notifier ticketuc.Notifier = ticketuc.NewInlineNotifier(c.Sender)
	if cfg.RedisURL != "" {
		redisOpt, err := queue.ParseRedisURL(cfg.RedisURL)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		c.dispatcher = queue.NewDispatcher(asynq.NewClient(redisOpt), log)
		notifier = c.dispatcher

		c.redis = ratelimit.NewRedisClient(cfg.RedisURL)
		c.Limiter = ratelimit.NewLimiter(c.redis, "purchase", cfg.PurchaseRateLimit, time.Minute, log)
		log.Info("task queue and rate limiter enabled")
	} else {
		log.Info("REDIS_URL not set: confirmations are sent in-process, purchases are not rate limited")
	}

	purchase := ticketuc.NewPurchaseUseCase(tickets, ledger, issuer,
		pricing.NewCalculator(cfg.ServiceFeeRate, cfg.ProcessingFee), notifier, c.Metrics, log)
	c.TicketHandler = tickethandler.NewTicketHandler(purchase, log)

	door := staffuc.NewStaffUseCase(staffrepo.NewStaffRepository(conn), broadcaster, c.Metrics, log)
	c.StaffHandler = staffhandler.NewStaffHandler(door, c.Auth, log)

	admin := eventuc.NewEventUseCase(eventrepo.NewEventRepository(conn), ledger, log)
	c.EventHandler = eventhandler.NewEventHandler(admin, c.Auth, log)

	return c, nil
}

// Close releases the queue client, redis and the database pool.
func (c *Container) Close() {
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.Log.Warn("close task queue client", "error", err)
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.Log.Warn("close redis client", "error", err)
		}
	}
	if err := c.DB.Close(); err != nil {
		c.Log.Warn("close database", "error", err)
	}
}
