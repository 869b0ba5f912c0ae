package container

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbooth-services/common/config"
	"github.com/ticketbooth-services/common/logger"
)

func sqliteConfig(t *testing.T) *config.Config {
	return &config.Config{
		DBDriver:          "sqlite",
		SQLitePath:        filepath.Join(t.TempDir(), "container.db"),
		JWTSecret:         "test-secret",
		JWTTTL:            time.Hour,
		ServiceFeeRate:    decimal.RequireFromString("0.05"),
		ProcessingFee:     decimal.RequireFromString("2.99"),
		PurchaseRateLimit: 10,
		QRSize:            128,
	}
}

func TestNewWiresHandlersWithoutRedis(t *testing.T) {
	c, err := New(context.Background(), sqliteConfig(t), logger.Discard())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.TicketHandler)
	assert.NotNil(t, c.StaffHandler)
	assert.NotNil(t, c.EventHandler)
	assert.NotNil(t, c.Sender)
	assert.Nil(t, c.Limiter)
	assert.Nil(t, c.dispatcher)

	resp, err := c.EventHandler.Route(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Resource:   "/api/events",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.DBDriver = "oracle"

	_, err := New(context.Background(), cfg, logger.Discard())
	assert.Error(t, err)
}
