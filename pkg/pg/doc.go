// Package pg connects to PostgreSQL through a pgx pool, applies goose
// migrations and exposes small helpers for classifying driver errors.
//
// # Usage
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//	    return err
//	}
//
// Healthcheck returns a func(context.Context) error suitable for the
// readiness endpoint in pkg/httpserver.
package pg
