package observability

import (
	"log/slog"
	"os"

	"comradarr/internal/config"
)

// envLogLevel maps AppEnv to the minimum level the process logs at: debug
// in dev, warn under test runs (tick loops are chatty), info otherwise.
func envLogLevel(cfg config.Config) slog.Level {
	switch {
	case cfg.IsDev():
		return slog.LevelDebug
	case cfg.IsTest():
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// SetupLogger builds the process-wide JSON slog logger. The service and
// env fields ride along on every record so fleet-wide log queries can
// slice by deployment.
func SetupLogger(cfg config.Config) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: envLogLevel(cfg),
	})
	return slog.New(handler).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
}
