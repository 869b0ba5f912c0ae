package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ticketbooth-services/common/config"
	"github.com/ticketbooth-services/common/container"
	"github.com/ticketbooth-services/common/inventory"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/common/queue"
	"github.com/ticketbooth-services/common/scheduler"
)

// lambdaHandler is the signature every service handler exposes.
type lambdaHandler func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// adaptRequest converts an echo request into an APIGatewayProxyRequest.
// Resource carries the route template in gateway form ({name}).
func adaptRequest(c echo.Context) (events.APIGatewayProxyRequest, error) {
	r := c.Request()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return events.APIGatewayProxyRequest{}, err
	}
	defer r.Body.Close()

	headers := make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	queryParams := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			queryParams[key] = values[0]
		}
	}

	pathParams := make(map[string]string, len(c.ParamNames()))
	for i, name := range c.ParamNames() {
		if i < len(c.ParamValues()) {
			pathParams[name] = c.ParamValues()[i]
		}
	}

	return events.APIGatewayProxyRequest{
		Resource:              gatewayResource(c.Path()),
		Path:                  r.URL.Path,
		HTTPMethod:            r.Method,
		Headers:               headers,
		QueryStringParameters: queryParams,
		PathParameters:        pathParams,
		Body:                  string(body),
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
			Identity:  events.APIGatewayRequestIdentity{SourceIP: c.RealIP()},
		},
	}, nil
}

// gatewayResource rewrites "/api/events/:eventId" as "/api/events/{eventId}".
func gatewayResource(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			parts[i] = "{" + p[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

// writeResponse copies an APIGatewayProxyResponse onto the echo response.
func writeResponse(c echo.Context, resp events.APIGatewayProxyResponse) error {
	contentType := echo.MIMEApplicationJSONCharsetUTF8
	for key, value := range resp.Headers {
		if strings.EqualFold(key, echo.HeaderContentType) {
			contentType = value
			continue
		}
		c.Response().Header().Set(key, value)
	}
	return c.Blob(resp.StatusCode, contentType, []byte(resp.Body))
}

func lambdaRoute(h lambdaHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := adaptRequest(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable request body")
		}
		ctx := c.Request().Context()
		if req.RequestContext.RequestID != "" {
			ctx = context.WithValue(ctx, logger.RequestIDKey, req.RequestContext.RequestID)
		}
		resp, err := h(ctx, req)
		if err != nil {
			return err
		}
		return writeResponse(c, resp)
	}
}

// requestLogger writes one access log line per request.
func requestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			log.LogRequest(logger.RequestLog{
				Method:    c.Request().Method,
				Path:      c.Request().URL.Path,
				Status:    c.Response().Status,
				Duration:  time.Since(start),
				ClientIP:  c.RealIP(),
				UserAgent: c.Request().UserAgent(),
				RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
			})
			return nil
		}
	}
}

// newServer builds the HTTP surface over the container's handlers.
func newServer(c *container.Container) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = !c.Config.IsProduction()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(c.Log))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	// ======================= HEALTH & METRICS =======================
	e.GET("/health", func(ec echo.Context) error {
		ctx, cancel := context.WithTimeout(ec.Request().Context(), 2*time.Second)
		defer cancel()
		if err := c.DB.PingContext(ctx); err != nil {
			return ec.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": err.Error()})
		}
		return ec.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
	if c.Config.EnableMetrics {
		e.GET("/metrics", echo.WrapHandler(c.Metrics.Handler()))
	}

	// ======================= PUBLIC EVENT ROUTES =======================
	eventRoutes := lambdaRoute(c.EventHandler.Route)
	e.GET("/api/events", eventRoutes)
	e.GET("/api/events/:eventId", eventRoutes)
	e.GET("/api/events/:eventId/ticket-types", eventRoutes)

	// ======================= PURCHASE ROUTES =======================
	var purchaseMiddleware []echo.MiddlewareFunc
	if c.Limiter != nil {
		purchaseMiddleware = append(purchaseMiddleware, c.Limiter.Middleware())
	}
	e.POST("/api/purchases", lambdaRoute(c.TicketHandler.Route), purchaseMiddleware...)

	// ======================= STAFF ROUTES =======================
	staff := lambdaRoute(c.StaffHandler.Route)
	e.GET("/api/staff/events/:eventId/attendees", staff)
	e.GET("/api/staff/events/:eventId/tickets/:ticketId", staff)
	e.POST("/api/staff/events/:eventId/tickets/:ticketId/checkin", staff)
	e.POST("/api/staff/events/:eventId/tickets/:ticketId/redeem", staff)
	e.POST("/api/staff/events/:eventId/group-checkin", staff)
	e.GET("/api/staff/events/:eventId/orders/:orderId", staff)
	e.GET("/api/staff/events/:eventId/stats", staff)
	e.POST("/api/staff/scan", staff)

	// ======================= ADMIN ROUTES =======================
	e.POST("/api/admin/events", eventRoutes)
	e.PUT("/api/admin/events/:eventId", eventRoutes)
	e.DELETE("/api/admin/events/:eventId", eventRoutes)
	e.POST("/api/admin/events/:eventId/ticket-types", eventRoutes)
	e.PUT("/api/admin/events/:eventId/ticket-types/:ticketTypeId", eventRoutes)
	e.DELETE("/api/admin/events/:eventId/ticket-types/:ticketTypeId", eventRoutes)

	return e
}

func main() {
	cfg := config.Load()
	log := logger.Default()

	c, err := container.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("failed to build container", "error", err)
	}
	defer c.Close()
	log.Info("database ready", "driver", cfg.DBDriver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ======================= START SCHEDULER =======================
	report := scheduler.NewInventoryReportScheduler(c.DB, inventory.NewLedger(c.DB), c.Metrics, log, time.Minute)
	report.Start(ctx)
	defer report.Stop()

	// ======================= IN-PROCESS WORKER =======================
	if cfg.RedisURL != "" {
		redisOpt, err := queue.ParseRedisURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL", "error", err)
		}
		worker := queue.NewServer(redisOpt, 5)
		if err := worker.Start(queue.NewServeMux(c.Sender)); err != nil {
			log.Fatal("failed to start task worker", "error", err)
		}
		defer worker.Shutdown()
	}

	e := newServer(c)
	go func() {
		log.Info("server listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed to start", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
}
