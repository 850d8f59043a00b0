package server

import (
	"context"
	"net/http"
	"time"

	"github.com/wes-dispatch/wes-dispatch/internal/executioncontext"
)

// requestTimeout bounds the synchronous part of a request. A submission waits
// at most the dispatcher ack timeout, which is shorter.
const requestTimeout = 2 * time.Minute

// newExecutionContext creates the request scoped context handed to the handlers.
// The logger carries the request fields added by loggerWithRequest, so every
// record of the request can be correlated by its request_id.
func (s *Server) newExecutionContext(r *http.Request) *executioncontext.ExecutionContext {
	requestID, enhancedLogger := s.loggerWithRequest(r)

	ctx := r.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return executioncontext.NewExecutionContext(ctx, requestID, enhancedLogger, requestTimeout)
}
