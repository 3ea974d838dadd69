package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"main/internal/archive"
	"main/internal/forward"
	"main/internal/gateway"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/schema"
	"main/internal/store"
	"main/pkg/conn"
	"main/pkg/exception"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
)

const (
	storePingTimeout = 5 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway: %v", err)
	}
}

func run() error {
	addrFlag := flag.String("addr", "", "listen address override")
	flag.Parse()

	cfg, err := ops.Load()
	if err != nil {
		return err
	}
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PyroscopeURL != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "order-gateway",
			ServerAddress:   cfg.PyroscopeURL,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() { _ = profiler.Stop() }()
	}

	redisClient, err := conn.NewRedis(conn.RedisOption{URL: cfg.RedisURL})
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Unreachable store at boot is fatal; running degraded would only
	// trade a visible failure for silent event drops.
	pingCtx, cancel := context.WithTimeout(ctx, storePingTimeout)
	err = redisClient.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	logs.Info("connected to redis")

	metrics := obs.NewMetrics()

	var archiver *archive.Archiver
	if cfg.PostgresDSN != "" {
		pg, err := conn.NewPostgres(conn.PostgresOption{DSN: cfg.PostgresDSN})
		if err != nil {
			return err
		}
		defer pg.Close()

		sink, err := archive.NewGormSink(pg.DB())
		if err != nil {
			return err
		}
		archiver = archive.New(sink, archive.Option{OnDrop: metrics.ArchiveDropped.Inc})
		// Background context: the drain loop ends on Close, after the
		// gateway stops publishing.
		archiver.Start(context.Background())
		defer archiver.Close()
		logs.Info("archive sink enabled")
	}

	forwarder := forward.New(forward.Option{
		Scheme: cfg.APIScheme,
		Host:   cfg.APIHost,
		OnDone: func(_ schema.Order, err error) {
			switch {
			case err == nil:
				metrics.ForwardDelivered.Inc()
			case errors.Is(err, exception.ErrDeliveryUnreachable):
				metrics.ForwardUnreachable.Inc()
			default:
				metrics.ForwardRejected.Inc()
			}
		},
	})

	g, err := gateway.New(ctx, store.New(redisClient.DB()), forwarder, gateway.Option{
		CORSOrigin: cfg.CORSOrigin,
		Metrics:    metrics,
		Archiver:   archiver,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", withCORS(cfg.CORSOrigin, handleHealth))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws", g.HandleWS)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logs.Infof("gateway listening on %s", cfg.Addr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logs.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	g.Close()
	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, "order gateway is running")
}

func withCORS(origin string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestOrigin := r.Header.Get("Origin")
		if requestOrigin != "" && (origin == "" || requestOrigin == origin) {
			w.Header().Set("Access-Control-Allow-Origin", requestOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}
