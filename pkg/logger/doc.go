// Package logger builds the service's *slog.Logger and keeps attribute keys
// uniform across packages.
//
// WithEnvironment picks a profile (text at DEBUG for development, JSON at
// INFO elsewhere). Config lets operators override level and format through
// LOG_LEVEL and LOG_FORMAT. Extractors registered with
// WithContextExtractors add request scoped values to every record logged
// through a *Context method.
//
//	override, err := cfg.Log.Option()
//	if err != nil {
//	    return err
//	}
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "billingd"),
//	    override,
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "tickets spent", logger.UserID(42), slog.Int("amount", 2))
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
