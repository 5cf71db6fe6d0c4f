// Package engine wires the source adapters, the alert path, and the HTTP
// surface together and owns their lifecycle.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	"vigil/internal/alert"
	"vigil/internal/api"
	"vigil/internal/config"
	"vigil/internal/dispatch"
	"vigil/internal/logger"
	"vigil/internal/middleware"
	"vigil/internal/models"
	"vigil/internal/source"
	"vigil/internal/ws"
)

// Engine is the high-level coordinator for ingesting, evaluating, and alerting.
type Engine struct {
	cfg *config.Config

	hub        *ws.Hub
	dispatcher *dispatch.Dispatcher
	alerter    *alert.Alerter

	subscriber  *source.Subscriber
	fileReader  *source.FileReader
	storeReader *source.StoreReader
	db          *sql.DB

	httpServer *http.Server
	wg         sync.WaitGroup
}

// New constructs an Engine with the given config.
func New(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// connectivityAlerts adapts broker connectivity transitions to alert kinds.
type connectivityAlerts struct {
	alerter *alert.Alerter
}

func (c connectivityAlerts) Online()  { c.alerter.Fire(alert.KindConnectivityRestored) }
func (c connectivityAlerts) Offline() { c.alerter.Fire(alert.KindConnectivityLost) }

// Run starts background goroutines and blocks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	log := logger.WithComponent("engine")
	log.Info().Msg("engine starting")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.initAlertPath()
	if err := e.initSources(); err != nil {
		return err
	}
	e.initHTTPServer()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.hub.Run(ctx)
	}()

	e.startAdapters(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		log.Info().Str("addr", e.cfg.HTTPAddr).Msg("starting HTTP server")
		if err := e.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.reportStats(ctx)
	}()

	e.alerter.Fire(alert.KindSystemStartup)

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")
	return e.shutdown(cancel)
}

// initAlertPath builds the evaluator, gate, dispatcher, and hub.
func (e *Engine) initAlertPath() {
	e.hub = ws.NewHub()

	var player dispatch.Player = dispatch.NoopPlayer{}
	if e.cfg.Audio.Enabled {
		player = dispatch.NewExecPlayer(e.cfg.Audio.Command, e.cfg.Audio.Args)
	}
	e.dispatcher = dispatch.NewDispatcher(player, e.cfg.Audio.Timeout)

	eval := alert.NewEvaluator(e.cfg.Thresholds)
	gate := alert.NewGate(e.cfg.Cooldown)
	e.alerter = alert.NewAlerter(eval, gate, e.dispatcher)
	e.alerter.OnFire = func(kind alert.Kind, r *models.Reading) {
		payload := map[string]any{"kind": kind, "cue": kind.Cue()}
		if r != nil {
			payload["sensor"] = r.Kind
			payload["value"] = r.Value
		}
		e.hub.Broadcast("alert", payload)
	}
}

// initSources builds one pipeline per adapter and subscribes the hub observer.
func (e *Engine) initSources() error {
	log := logger.WithComponent("engine")
	eval := e.alerter.Evaluator()

	observer := func(src string, doc models.Document) {
		e.hub.Broadcast("document", map[string]any{
			"source":  src,
			"sensors": api.DocumentView(eval, doc),
		})
	}

	busPipe := source.NewPipeline("bus", e.alerter)
	busPipe.Subscribe(observer)
	e.subscriber = source.NewSubscriber(source.BusConfig{
		Brokers:    e.cfg.Bus.Brokers,
		GroupID:    e.cfg.Bus.GroupID,
		Topics:     topicKinds(e.cfg.Bus.Topics),
		MinBackoff: e.cfg.Bus.MinBackoff,
		MaxBackoff: e.cfg.Bus.MaxBackoff,
	}, busPipe, connectivityAlerts{e.alerter})
	log.Info().
		Strs("brokers", e.cfg.Bus.Brokers).
		Int("topics", len(e.cfg.Bus.Topics)).
		Msg("bus subscriber initialized")

	filePipe := source.NewPipeline("file", e.alerter)
	filePipe.Subscribe(observer)
	e.fileReader = source.NewFileReader(source.FileConfig{
		Path:     e.cfg.File.Path,
		Interval: e.cfg.File.Interval,
		Watch:    e.cfg.File.Watch,
	}, filePipe)
	log.Info().Str("path", e.cfg.File.Path).Dur("interval", e.cfg.File.Interval).Msg("file reader initialized")

	if e.cfg.Store.DSN != "" {
		db, err := sql.Open(e.cfg.Store.Driver, e.cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		e.db = db

		storePipe := source.NewPipeline("store", e.alerter)
		storePipe.Subscribe(observer)
		e.storeReader = source.NewStoreReader(db, e.cfg.Store.Interval, storePipe)
		log.Info().Str("driver", e.cfg.Store.Driver).Msg("store reader initialized")
	}
	return nil
}

func (e *Engine) startAdapters(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.subscriber.Run(ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.fileReader.Run(ctx)
	}()

	if e.storeReader != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.storeReader.Run(ctx)
		}()
	}
}

// initHTTPServer mounts the API, websocket, and observability endpoints.
func (e *Engine) initHTTPServer() {
	providers := []api.SnapshotProvider{e.subscriber.Pipeline(), e.fileReader.Pipeline()}
	if e.storeReader != nil {
		providers = append(providers, e.storeReader.Pipeline())
	}

	handler := api.NewHandler(api.Config{
		Providers:       providers,
		Alerter:         e.alerter,
		Dispatcher:      e.dispatcher,
		BrokerConnected: e.subscriber.Connected,
		Brokers:         e.cfg.Bus.Brokers,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/sensors", handler.Sensors)
	mux.HandleFunc("/api/broker-status", handler.BrokerStatus)
	mux.HandleFunc("/api/alerts/status", handler.AlertStatus)
	mux.HandleFunc("/api/alerts/test", handler.AlertTest)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(e.hub, w, r)
	})
	mux.HandleFunc("/healthz", e.healthHandler)
	mux.HandleFunc("/stats", e.statsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	e.httpServer = &http.Server{
		Addr: e.cfg.HTTPAddr,
		Handler: middleware.Chain(mux,
			middleware.Recovery,
			middleware.Logging,
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// shutdown performs graceful shutdown: stop accepting HTTP, stop adapters and
// join their loops, let any in-flight action complete, then close the store.
func (e *Engine) shutdown(cancel context.CancelFunc) error {
	log := logger.WithComponent("engine")
	log.Info().Msg("initiating graceful shutdown")

	shutdownCtx, release := context.WithTimeout(context.Background(), 10*time.Second)
	defer release()

	if err := e.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		e.dispatcher.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("adapters stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("adapter shutdown timeout - forcing exit")
	}

	if e.db != nil {
		if err := e.db.Close(); err != nil {
			log.Error().Err(err).Msg("store close error")
		}
	}

	log.Info().Msg("engine stopped")
	return nil
}

// reportStats periodically logs engine state.
func (e *Engine) reportStats(ctx context.Context) {
	log := logger.WithComponent("engine")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Info().
				Bool("broker_connected", e.subscriber.Connected()).
				Bool("action_in_flight", e.dispatcher.Busy()).
				Int("alert_kinds_fired", len(e.alerter.Gate().LastFired())).
				Msg("stats")
		}
	}
}

// statsHandler exposes the same state reportStats logs, on demand.
func (e *Engine) statsHandler(w http.ResponseWriter, r *http.Request) {
	lastFired := make(map[string]time.Time)
	for kind, t := range e.alerter.Gate().LastFired() {
		lastFired[string(kind)] = t
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"broker_connected": e.subscriber.Connected(),
		"action_in_flight": e.dispatcher.Busy(),
		"cooldown_seconds": e.alerter.Gate().Window().Seconds(),
		"last_fired":       lastFired,
	})
}

// healthHandler reports liveness plus broker connectivity.
func (e *Engine) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","broker_connected":%t,"timestamp":"%s"}`,
		e.subscriber.Connected(), time.Now().Format(time.RFC3339))
}

// topicKinds converts the configured topic map to typed sensor kinds.
func topicKinds(topics map[string]string) map[string]models.SensorKind {
	out := make(map[string]models.SensorKind, len(topics))
	for topic, kind := range topics {
		out[topic] = models.SensorKind(kind)
	}
	return out
}
