// Package pg wires PostgreSQL through pgx/v5: pool construction with retry,
// goose migrations (from disk or an embedded filesystem), a health probe, a
// transaction helper and SQLSTATE classifiers.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil { ... }
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil { ... }
//	defer pool.Close()
//	if err := pg.Migrate(ctx, pool, cfg, postgres.Migrations, log); err != nil { ... }
package pg
