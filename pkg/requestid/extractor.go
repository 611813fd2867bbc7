package requestid

import (
	"context"
	"log/slog"

	"github.com/missionlab/payment-service/pkg/logger"
)

// LoggerExtractor is a logger.ContextExtractor for the request id.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := FromContext(ctx); id != "" {
			return logger.RequestID(id), true
		}
		return slog.Attr{}, false
	}
}
