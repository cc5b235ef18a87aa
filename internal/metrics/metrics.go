package metrics

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

var (
	initOnce       sync.Once
	serverMutex    sync.Mutex
	currentSrv     *http.Server
	triggerMutex   sync.RWMutex
	triggerChannel chan os.Signal
)

// Init initializes all metrics subsystems and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initSweepMetrics()
		initValidationMetrics()

		registerSweepMetrics()
		registerValidationMetrics()

		// Expose the gauge before the first sweep completes
		SweepLastRunTimestamp.Set(0)
	})
}

// SetTriggerChannel sets the channel /trigger writes to
func SetTriggerChannel(ch chan os.Signal) {
	triggerMutex.Lock()
	defer triggerMutex.Unlock()
	triggerChannel = ch
}

// Trigger requests are throttled so a misbehaving client cannot queue
// back-to-back sweeps.
const (
	triggerInterval = 5 * time.Second
	triggerBurst    = 2
)

// Handler returns the router served by StartServer
// Exposes /metrics (Prometheus), /health and /trigger
func Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","healthy":true}`))
	}).Methods("GET", "HEAD")

	// POST /trigger runs a sweep now instead of waiting for the next tick
	limiter := rate.NewLimiter(rate.Every(triggerInterval), triggerBurst)
	router.HandleFunc("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "Too many trigger requests", http.StatusTooManyRequests)
			return
		}

		triggerMutex.RLock()
		ch := triggerChannel
		triggerMutex.RUnlock()

		if ch == nil {
			http.Error(w, "Trigger channel not initialized", http.StatusServiceUnavailable)
			return
		}
		select {
		case ch <- syscall.SIGUSR1:
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Sweep triggered"))
		default:
			http.Error(w, "Trigger channel full", http.StatusServiceUnavailable)
		}
	}).Methods("POST")

	return router
}

// StartServer starts the metrics HTTP server on the specified address
func StartServer(addr string, logger *log.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Printf("metrics server already running on %s", currentSrv.Addr)
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	currentSrv = srv

	go func() {
		logger.Printf("metrics server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server error: %v", err)
			SweepErrorsTotal.Inc()
		}
	}()
}

// Shutdown gracefully shuts down the metrics server
func Shutdown(ctx context.Context, logger *log.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv == nil {
		return
	}

	if err := currentSrv.Shutdown(ctx); err != nil {
		logger.Printf("metrics server shutdown error: %v", err)
	}
	currentSrv = nil
}
