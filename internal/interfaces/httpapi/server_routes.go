package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, opts RouterOptions) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /v1/status", handler.GetServiceStatus)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	if !opts.SwaggerEnabled {
		return
	}

	mux.HandleFunc("GET /openapi.yaml", handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerDrawRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/draws/latest", handler.GetLatestDraw)
	mux.HandleFunc("GET /v1/draws/history", handler.GetDrawHistory)
	mux.HandleFunc("GET /v1/draws/rounds/{round}", handler.GetDrawRound)
	mux.HandleFunc("GET /v1/draws/next", handler.GetNextDraw)
	mux.HandleFunc("GET /v1/draws/range", handler.GetDataRange)
	// Shares the in-flight refresh when one is already running.
	mux.HandleFunc("POST /v1/draws/refresh", handler.ForceRefresh)
}
