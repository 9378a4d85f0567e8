package main

import (
	"bufio"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"truckplan/internal/api"
	"truckplan/internal/config"
	"truckplan/internal/dataset"
	"truckplan/internal/metrics"
	"truckplan/internal/opt"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	tables, err := dataset.Load(cfg.DataDir)
	if err != nil {
		log.Fatalf("load dataset from %s: %v", cfg.DataDir, err)
	}
	log.Printf("dataset: %d destinations, %d consignments, %d lanes",
		len(tables.Destinations), len(tables.Consignments), len(tables.Lanes))

	runner := opt.NewRunner(tables, opt.Config{
		Build: opt.BuildConfig{
			Pool:        cfg.Solver.Pool,
			Days:        cfg.Solver.Days,
			MaxBinaries: cfg.Solver.MaxBinaries,
		},
		DefaultSolver: cfg.Solver.Backend,
		TimeLimit:     cfg.Solver.TimeLimit(),
		SolverURL:     cfg.Solver.URL,
	})

	srv, err := api.NewServer(cfg, runner)
	if err != nil {
		log.Fatalf("init server: %v", err)
	}

	mux := http.NewServeMux()

	// Plans
	mux.HandleFunc("/v1/plans", srv.PlansHandler)
	mux.HandleFunc("/v1/plans/", srv.PlanByIDHandler) // includes /assignments, /events/stream
	mux.HandleFunc("/v1/plans/ws", srv.PlanWSHandler)

	// Dataset browsing
	mux.HandleFunc("/v1/facilities", srv.FacilitiesHandler)
	mux.HandleFunc("/v1/lanes", srv.LanesHandler)
	mux.HandleFunc("/v1/consignments", srv.ConsignmentsHandler)

	// Planner config
	mux.HandleFunc("/v1/planner/config", srv.PlannerConfigHandler)
	mux.HandleFunc("/v1/admin/planner/config", srv.AdminPlannerConfigHandler)

	// Subscriptions
	mux.HandleFunc("/v1/subscriptions", srv.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", srv.SubscriptionByIDHandler)

	// Health & metrics
	mux.HandleFunc("/healthz", srv.HealthHandler)
	mux.HandleFunc("/readyz", srv.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	worker := srv.NewWebhookWorker()
	worker.Start()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("API listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// SSE needs Flush and the WebSocket upgrade needs Hijack; forward both.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		dur := time.Since(start)
		metrics.ObserveHTTP(r.Method, r.URL.Path, sw.code, dur)
		log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, sw.code, dur)
	})
}
