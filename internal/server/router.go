package server

import (
	"net/http"
	"time"

	"github.com/fvila/renovaciones/internal/alerts"
	"github.com/fvila/renovaciones/internal/audit"
	"github.com/fvila/renovaciones/internal/handlers"
	"github.com/fvila/renovaciones/internal/httpx"
	"github.com/fvila/renovaciones/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options carries the collaborators every handler group needs.
type Options struct {
	DB      *gorm.DB
	Audit   *audit.Sink
	Store   *storage.Store
	Scanner *alerts.DeadlineScanner
	Log     *zap.Logger
}

// New constructs the root http.Handler with all routes and middlewares applied.
func New(opts Options) http.Handler {
	mux := http.NewServeMux()

	// --- Health endpoints ---
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := opts.DB.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	ch := handlers.NewClientHandler(opts.DB, opts.Audit, opts.Store)
	mux.HandleFunc("POST /clients", ch.Create)
	mux.HandleFunc("GET /clients", ch.List)
	mux.HandleFunc("GET /clients/{id}", ch.Get)
	mux.HandleFunc("PATCH /clients/{id}", ch.Patch)
	mux.HandleFunc("DELETE /clients/{id}", ch.Delete)
	mux.HandleFunc("POST /clients/{id}/photo", ch.UploadPhoto)

	dh := handlers.NewDocumentHandler(opts.DB, opts.Audit, opts.Store)
	mux.HandleFunc("POST /documents", dh.Create)
	mux.HandleFunc("GET /documents", dh.List)
	mux.HandleFunc("GET /documents/{id}", dh.Get)
	mux.HandleFunc("PATCH /documents/{id}", dh.Patch)
	mux.HandleFunc("DELETE /documents/{id}", dh.Delete)
	mux.HandleFunc("POST /documents/{id}/file", dh.UploadFile)

	ah := handlers.NewAlertHandler(opts.DB, opts.Audit)
	mux.HandleFunc("POST /alerts", ah.Create)
	mux.HandleFunc("GET /alerts", ah.List)
	mux.HandleFunc("GET /alerts/{id}", ah.Get)
	mux.HandleFunc("PATCH /alerts/{id}", ah.Patch)
	mux.HandleFunc("DELETE /alerts/{id}", ah.Delete)

	th := handlers.NewToolsHandler(opts.DB, opts.Audit, opts.Store, opts.Scanner)
	mux.HandleFunc("POST /tools/import/clients", th.ImportClients)
	mux.HandleFunc("POST /tools/scan/run", th.RunScan)
	mux.HandleFunc("GET /tools/audit", th.AuditTail)
	mux.HandleFunc("POST /tools/pdf/client/{id}", th.ClientPDF)
	mux.HandleFunc("GET /reports/summary", th.Summary)
	mux.HandleFunc("GET /reports/renewals", th.Renewals)

	return withRecover(withLogging(mux, opts.Log))
}

func withLogging(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
