package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"ridehub/internal/app/auth"
	"ridehub/internal/app/config"
	"ridehub/internal/app/store"
	"ridehub/internal/app/ws"
)

// Application wires the hub, router, store, authenticator and the
// background scheduler together. One instance per process; everything
// it owns is constructed here and passed by reference, never held in
// package-level state.
type Application struct {
	config *config.Config
	store  *store.Store
	auth   *auth.TokenService
	hub    *ws.Hub
	router *ws.Router
	sched  *ws.Scheduler
	kafka  *KafkaSink
}

func New(ctx context.Context) (*Application, error) {
	cfg, err := config.NewConfig(ctx)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	a := newApplication(cfg, st)

	if cfg.KafkaHost != "" {
		sink, err := NewKafkaSink(cfg.KafkaHost, cfg.KafkaPort, cfg.KafkaTopic)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("connect kafka sink: %w", err)
		}
		a.kafka = sink
		a.hub.AddSink(sink)
	}

	return a, nil
}

// newApplication builds everything that has no external side effects;
// tests construct their instances through here.
func newApplication(cfg *config.Config, st *store.Store) *Application {
	hub := ws.NewHub()
	a := &Application{
		config: cfg,
		store:  st,
		auth:   auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL, st),
		hub:    hub,
		router: ws.NewRouter(hub, st),
		sched:  ws.NewScheduler(),
	}
	a.sched.Add("heartbeat", ws.HeartbeatTask(hub, cfg.HeartbeatInterval))
	return a
}

// Run starts the background tasks and serves HTTP until ctx is
// canceled, then drains everything before returning.
func (a *Application) Run(ctx context.Context) error {
	a.sched.Start(ctx)

	server := &http.Server{
		Addr:              a.config.ServerHost + ":" + strconv.Itoa(a.config.ServerPort),
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Println("HTTP--> listening on", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		a.shutdown()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("HTTP--> shutdown:", err)
	}

	a.shutdown()
	return nil
}

// shutdown stops background work and releases collaborators. The
// scheduler stop blocks until every task acknowledged cancellation.
func (a *Application) shutdown() {
	a.sched.Stop()
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			log.Println("Kafka--> close:", err)
		}
	}
	if err := a.store.Close(); err != nil {
		log.Println("DB--> close:", err)
	}
}
