package main

import (
	"go.uber.org/zap"

	"github.com/sells-group/vidauth/internal/config"
	"github.com/sells-group/vidauth/internal/cost"
	"github.com/sells-group/vidauth/internal/detector"
	"github.com/sells-group/vidauth/pkg/openrouter"
)

// initDetector builds the detector used by serve and analyze. Without an API
// key no upstream client is created and every frame gets a mock prediction.
func initDetector(c *config.Config) *detector.Detector {
	opts := []detector.Option{
		detector.WithCostCalculator(cost.NewCalculator(c.Rates())),
		detector.WithMaxBatchSize(c.Processing.MaxBatchSize),
	}

	if c.OpenRouter.Key == "" {
		zap.L().Warn("no openrouter api key configured, running in demo mode")
		return detector.New(nil, opts...)
	}

	client := openrouter.NewClient(c.OpenRouter.Key,
		openrouter.WithBaseURL(c.OpenRouter.BaseURL),
		openrouter.WithModel(c.OpenRouter.Model),
		openrouter.WithTimeout(c.OpenRouter.Timeout()),
		openrouter.WithAttribution(c.OpenRouter.Referer, c.OpenRouter.Title),
	)
	return detector.New(client, opts...)
}
