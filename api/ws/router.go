package ws

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/kasuganosora/bondageclub/server/game/player"
	"go.uber.org/zap"
)

// HandlerFunc processes the first argument of a Socket.IO event.
type HandlerFunc func(ctx context.Context, s *player.Session, payload json.RawMessage) error

// ConnectFunc runs once a socket has joined the default namespace.
type ConnectFunc func(ctx context.Context, s *player.Session)

// Router dispatches incoming Socket.IO events to registered handlers.
type Router struct {
	handlers  map[string]HandlerFunc
	onConnect []ConnectFunc
	logger    *zap.Logger
}

// NewRouter creates a new Router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// On registers a HandlerFunc for the given event name.
func (r *Router) On(event string, fn HandlerFunc) {
	r.handlers[event] = fn
}

// OnConnect registers a hook run after the namespace CONNECT is acknowledged.
func (r *Router) OnConnect(fn ConnectFunc) {
	r.onConnect = append(r.onConnect, fn)
}

// Connect runs the connect hooks for s.
func (r *Router) Connect(s *player.Session) {
	ctx := r.traceCtx()
	defer r.recoverPanic(s, "connect", ctx)
	for _, fn := range r.onConnect {
		fn(ctx, s)
	}
}

// Dispatch invokes the handler registered for pkt.Event.
func (r *Router) Dispatch(s *player.Session, pkt player.Packet) {
	fn, ok := r.handlers[pkt.Event]
	if !ok {
		r.logger.Debug("unhandled event",
			zap.String("event", pkt.Event),
			zap.String("socket_id", s.ID))
		return
	}

	ctx := r.traceCtx()
	defer r.recoverPanic(s, pkt.Event, ctx)
	if err := fn(ctx, s, pkt.Payload); err != nil {
		r.logger.Error("handler error",
			zap.String("event", pkt.Event),
			zap.String("socket_id", s.ID),
			zap.String("trace_id", TraceIDFromCtx(ctx)),
			zap.Error(err))
	}
}

// traceCtx assigns a trace ID for one dispatch.
func (r *Router) traceCtx() context.Context {
	return context.WithValue(context.Background(), ctxKeyTraceID{}, uuid.NewString())
}

func (r *Router) recoverPanic(s *player.Session, event string, ctx context.Context) {
	if rec := recover(); rec != nil {
		r.logger.Error("panic in ws handler",
			zap.String("event", event),
			zap.String("socket_id", s.ID),
			zap.String("trace_id", TraceIDFromCtx(ctx)),
			zap.Any("recover", rec),
			zap.String("stack", string(debug.Stack())))
	}
}

type ctxKeyTraceID struct{}

// TraceIDFromCtx extracts the trace ID from a handler context.
func TraceIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTraceID{}).(string); ok {
		return v
	}
	return ""
}
