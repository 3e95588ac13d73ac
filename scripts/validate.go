package main

import (
	"flag"
	"log/slog"

	"resort/internal/logger"
	"resort/internal/validation"
)

func main() {
	var baseURL, accommodationID string
	flag.StringVar(&baseURL, "url", "http://localhost:8081", "Base URL for API validation")
	flag.StringVar(&accommodationID, "accommodation", "villa-1", "Accommodation used for the probe stay")
	flag.Parse()

	logger.Init("info", "text")
	slog.Info("Starting API validation", "url", baseURL)

	validation.RunValidation(baseURL, accommodationID)

	slog.Info("Validation passed")
}
