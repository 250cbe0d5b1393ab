package storage

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	logx "seojobs/pkg/logx"
)

// Open initializes the configured store and applies migrations.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	default:
		return nil, errors.WithHint(
			errors.Wrapf(ErrUnknownDriver, "driver %q", driver),
			"supported drivers: sqlite",
		)
	}
}
