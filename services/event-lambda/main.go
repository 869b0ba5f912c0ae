package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/ticketbooth-services/common/config"
	"github.com/ticketbooth-services/common/container"
	"github.com/ticketbooth-services/common/logger"
)

// For AWS Lambda deployment
func main() {
	cfg := config.Load()
	c, err := container.New(context.Background(), cfg, logger.Default())
	if err != nil {
		logger.Default().Fatal("failed to build container", "error", err)
	}
	defer c.Close()

	lambda.Start(c.EventHandler.Route)
}
