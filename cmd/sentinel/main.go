// Package main runs the trade admission service: signal ingestion over
// WebSocket, the gate pipeline, the risk state machine, the trust
// graph, exit monitoring, and the operator HTTP surface (/metrics,
// risk controls).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"trade-sentinel/internal/engine"
	"trade-sentinel/internal/entropy"
	"trade-sentinel/internal/events"
	"trade-sentinel/internal/exitmanager"
	"trade-sentinel/internal/gate"
	"trade-sentinel/internal/ingest"
	"trade-sentinel/internal/marketdata"
	"trade-sentinel/internal/observability"
	"trade-sentinel/internal/risk"
	"trade-sentinel/internal/scheduler"
	"trade-sentinel/internal/simaccuracy"
	"trade-sentinel/internal/storage"
	chstore "trade-sentinel/internal/storage/clickhouse"
	"trade-sentinel/internal/storage/memory"
	"trade-sentinel/internal/storage/migrations"
	pgstore "trade-sentinel/internal/storage/postgres"
	"trade-sentinel/internal/trust"
	"trade-sentinel/pkg/config"
)

type allStores struct {
	wallets   storage.WalletStore
	edges     storage.FundingEdgeStore
	riskState storage.RiskStateStore
	samples   storage.SampleStore
	positions storage.PositionStore
	audit     storage.AuditStore
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(os.Getenv("SENTINEL_LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if cfg.SignalFeedURL == "" {
		log.Fatal("signalFeedUrl is required")
	}
	if cfg.OracleURL == "" {
		log.Fatal("oracleUrl is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("create stores")
	}
	defer cleanup()

	reg := prometheus.NewRegistry()
	metrics := observability.New(reg)

	sink := &auditSink{audit: stores.audit, log: log.WithField("component", "events")}

	machine, err := risk.NewMachine(ctx, stores.riskState, sink, cfg.StartingCapitalUSD, time.Now())
	if err != nil {
		log.WithError(err).Fatal("init risk machine")
	}

	graph := trust.NewGraph(stores.wallets, stores.edges, trust.NewCEXRegistry(cfg.CEXWallets))
	tracker := simaccuracy.NewTracker(stores.samples)
	exits := exitmanager.NewManager(stores.positions, sink)
	oracle := marketdata.NewClient(cfg.OracleURL)

	injector := entropy.NewInjector(
		*cfg.Entropy.SuppressProbability,
		cfg.Entropy.Identities,
		nil,
		sink,
	)

	processor := engine.NewProcessor(
		engine.Config{
			DecisionDeadline:       cfg.DecisionDeadline(),
			CountPartialFillAsFull: *cfg.CountPartialFillAsFull,
		},
		gate.NewPipeline(gate.DefaultConfig()),
		machine,
		graph,
		tracker,
		injector,
		oracle,
		oracle,
		stores.positions,
		stores.audit,
		sink,
		metrics,
	)

	sched := scheduler.New(
		scheduler.DefaultConfig(),
		graph, machine, exits, tracker,
		stores.positions, oracle, processor, metrics, sink, log,
	)
	go sched.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: buildMux(reg, machine, log),
	}
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
			stop()
		}
	}()

	feed, err := ingest.NewFeed(ctx, cfg.SignalFeedURL, ingest.DefaultConfig(), log)
	if err != nil {
		log.WithError(err).Fatal("connect signal feed")
	}

	log.Info("trade sentinel started")
	runLoop(ctx, feed, processor, log)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := feed.Close(); err != nil {
		log.WithError(err).Warn("feed close")
	}
	log.Info("shutdown complete")
}

// runLoop consumes signals until the context is cancelled.
func runLoop(ctx context.Context, feed *ingest.Feed, processor *engine.Processor, log *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-feed.Signals():
			if !ok {
				log.Warn("signal feed closed")
				return
			}
			res, err := processor.Process(ctx, sig)
			if err != nil {
				log.WithError(err).Error("signal processing failed")
				continue
			}
			if res.Intent != nil {
				log.WithFields(logrus.Fields{
					"correlation_id": res.CorrelationID,
					"token":          res.Intent.Token,
					"size_usd":       fmt.Sprintf("%.2f", res.Intent.SizeUSD),
				}).Info("trade intent admitted")
			}
		}
	}
}

// createStores wires either the in-memory or the persistent backend.
func createStores(ctx context.Context, cfg *config.Config) (*allStores, func(), error) {
	if cfg.Storage == config.StorageMemory {
		stores := &allStores{
			wallets:   memory.NewWalletStore(),
			edges:     memory.NewFundingEdgeStore(),
			riskState: memory.NewRiskStateStore(),
			samples:   memory.NewSampleStore(),
			positions: memory.NewPositionStore(),
			audit:     memory.NewAuditStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		wallets:   pgstore.NewWalletStore(pool),
		edges:     pgstore.NewFundingEdgeStore(pool),
		riskState: pgstore.NewRiskStateStore(pool),
		samples:   pgstore.NewSampleStore(pool),
		positions: pgstore.NewPositionStore(pool),
		audit:     chstore.NewAuditStore(chConn),
	}
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// buildMux serves metrics, health and the manual risk controls.
func buildMux(reg *prometheus.Registry, machine *risk.Machine, log *logrus.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	mux.HandleFunc("/risk/state", func(w http.ResponseWriter, r *http.Request) {
		st := machine.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"mode":        st.Mode,
			"capital":     st.Capital,
			"peak":        st.PeakCapital,
			"drawdown":    st.Drawdown(),
			"phase":       st.Phase,
			"trade_count": st.TradeCount,
		})
	})

	mux.HandleFunc("/risk/resume", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		approvedBy := r.FormValue("approved_by")
		if approvedBy == "" {
			http.Error(w, "approved_by is required", http.StatusBadRequest)
			return
		}
		if err := machine.ManualResume(r.Context(), approvedBy, time.Now()); err != nil {
			log.WithError(err).Warn("manual resume refused")
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "resumed")
	})

	mux.HandleFunc("/risk/killswitch", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if err := machine.ManualKillSwitch(r.Context(), time.Now()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "halted")
	})

	return mux
}

// auditSink persists the event stream and mirrors it to the log. Sink
// errors are log-only: the trading decision is final before emission.
type auditSink struct {
	audit storage.AuditStore
	log   *logrus.Entry
}

func (s *auditSink) Emit(e events.Event) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.At == 0 {
		e.At = time.Now().UnixMilli()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.audit.InsertEvent(ctx, e); err != nil {
		s.log.WithError(err).WithField("type", e.Type).Error("event persist failed")
	}

	s.log.WithFields(logrus.Fields{
		"type":           e.Type,
		"severity":       e.Severity,
		"correlation_id": e.CorrelationID,
	}).Info("event")
}
