package transport

import (
	"context"
	"fmt"

	"github.com/agentrt/streamrt/pkg/events"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to a client-visible RuntimeError. The server continues to
// accept new requests after a panic is recovered.
func Recovery() Middleware {
	return func(next TurnHandler) TurnHandler {
		return TurnHandlerFunc(func(ctx context.Context, req *TurnRequest, w ResponseWriter) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					retErr = &events.RuntimeError{
						Kind:    events.ErrorKindUpstreamStream,
						Message: fmt.Sprintf("recovered from panic: %v", r),
					}
				}
			}()
			return next.HandleTurn(ctx, req, w)
		})
	}
}
