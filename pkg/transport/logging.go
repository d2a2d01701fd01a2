package transport

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that emits structured log entries for each
// turn: contextId, prompt length, request ID (from context), duration,
// and whether the turn admission succeeded or failed.
//
// Note: admission failures (session conflict, client error) surface here;
// failures that happen mid-stream after admission are logged by the
// coordinator when it emits the terminal task-status event.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next TurnHandler) TurnHandler {
		return TurnHandlerFunc(func(ctx context.Context, req *TurnRequest, w ResponseWriter) error {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			err := next.HandleTurn(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("context_id", req.ContextID),
				slog.Int("prompt_len", len(req.Prompt)),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "turn failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "turn completed", attrs...)
			}

			return err
		})
	}
}
