package handlers

import (
	"sabore-analytics/internal/config"
	"sabore-analytics/internal/reports"

	"go.uber.org/zap"
)

type Handler struct {
	Reports *reports.Service
	Logger  *zap.Logger
	Config  config.Config
}
