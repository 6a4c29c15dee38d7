package progress

import (
	"context"
	"fmt"
	"log/slog"

	"ocrlabel/internal/common"
)

// Open builds the tracker named by cfg.Backend.
func Open(ctx context.Context, cfg common.ProgressConfig, logger *slog.Logger) (Tracker, error) {
	switch cfg.Backend {
	case common.ProgressMemory:
		return NewMemory(), nil
	case common.ProgressSQLite:
		s, err := OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case common.ProgressRedis:
		r, err := OpenRedis(ctx, cfg.RedisURL, cfg.RedisPrefix, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown progress backend %q", cfg.Backend), common.ErrInvalidInput)
	}
}
