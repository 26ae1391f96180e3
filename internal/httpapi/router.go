package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router wraps the standard library mux; handlers do their own sub-path
// dispatch the way the rest of the API layer expects.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterRoutes wires the full REST and WebSocket surface.
func (r *Router) RegisterRoutes(devices *DeviceHandler, alarmLogs *AlarmLogHandler, ws *WSHandler, health *HealthHandler) {
	r.Handle("/api/v1/devices", devices)
	r.Handle("/api/v1/devices/", devices)

	r.Handle("/api/v1/alarm-logs", alarmLogs)
	r.Handle("/api/v1/alarm-logs/", alarmLogs)

	r.Handle("/api/v1/health", health)
	r.Handle("/ws", ws)
}
