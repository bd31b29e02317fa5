package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func InjectTraceID(ctx context.Context) context.Context {
	id := uuid.New().String()
	logger := log.With().Str("traceId", id).Logger()
	return logger.WithContext(ctx)
}

// InjectJobKey attaches the pipeline job key to the context logger so every
// stage log line carries it.
func InjectJobKey(ctx context.Context, jobKey string) context.Context {
	logger := log.Ctx(ctx).With().Str("jobKey", jobKey).Logger()
	return logger.WithContext(ctx)
}
