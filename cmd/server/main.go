package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	grpcadapter "github.com/cp25sy5-modjot/ledger-service/internal/adapters/grpc"
	"github.com/cp25sy5-modjot/ledger-service/internal/adapters/httpapi"
	"github.com/cp25sy5-modjot/ledger-service/internal/adapters/imaging"
	"github.com/cp25sy5-modjot/ledger-service/internal/adapters/llm"
	"github.com/cp25sy5-modjot/ledger-service/internal/adapters/memstore"
	"github.com/cp25sy5-modjot/ledger-service/internal/adapters/parser"
	"github.com/cp25sy5-modjot/ledger-service/internal/adapters/sheets"
	"github.com/cp25sy5-modjot/ledger-service/internal/adapters/sqlstore"
	"github.com/cp25sy5-modjot/ledger-service/internal/config"
	"github.com/cp25sy5-modjot/ledger-service/internal/goals"
	"github.com/cp25sy5-modjot/ledger-service/internal/ledger"
	"github.com/cp25sy5-modjot/ledger-service/internal/metrics"
	"github.com/cp25sy5-modjot/ledger-service/internal/pkg/clock"
	"github.com/cp25sy5-modjot/ledger-service/internal/pkg/grpcserver"
	"github.com/cp25sy5-modjot/ledger-service/internal/policy"
	"github.com/cp25sy5-modjot/ledger-service/internal/ports"
	"github.com/cp25sy5-modjot/ledger-service/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
)

func main() {
	cfg, err := config.Load()
	setupLogging(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// gRPC server, health only
	s := grpcserver.New(cfg.GRPCAddr, grpc.UnaryInterceptor(grpcadapter.UnaryLogger()))
	grpcadapter.RegisterLedgerHealth(s)

	// Adapters (infrastructure)
	expenses, goalsTable, closeStore := openStore(cfg)
	defer closeStore()

	pol := policy.New(policy.Config{
		ReportingCurrency: cfg.ReportingCurrency,
		Rates:             cfg.Rates,
		CategoryThreshold: cfg.CategoryThreshold,
	})
	clk := clock.System{Location: cfg.Location}

	var extractor ports.Extractor
	if cfg.LLMAPIKey != "" {
		extractor = llm.New(llm.Config{
			APIKey:        cfg.LLMAPIKey,
			BaseURL:       cfg.LLMBaseURL,
			Model:         cfg.LLMModel,
			Timeout:       cfg.LLMTimeout,
			MaxConcurrent: cfg.LLMMaxConcurrent,
			Limits:        imaging.Limits{MaxBytes: cfg.MaxImageBytes, MaxDimension: cfg.MaxImageDimension},
		})
		log.Info().Str("model", cfg.LLMModel).Msg("using model backed extraction")
	} else {
		extractor = parser.NewRulesParser(pol.Classifier())
		log.Warn().Msg("LLM_API_KEY not set, using the offline rules parser")
	}

	// Application services (use cases)
	rec := ledger.New(expenses, goalsTable, ledger.Options{
		Backoff: ledger.Backoff{
			Attempts: cfg.RetryAttempts,
			Base:     cfg.RetryBase,
			Max:      cfg.RetryMax,
		},
		Location: cfg.Location,
		Health:   s,
		Metrics:  m,
	})
	engine := usecase.NewEngine(usecase.Config{
		Extractor: extractor,
		Policy:    pol,
		Ledger:    rec,
		Goals:     goals.New(rec, pol, clk),
		Clock:     clk,
		Metrics:   m,
	})

	// HTTP server (interface adapter)
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.Router(httpapi.Options{
			Engine:         engine,
			AllowedActors:  cfg.AllowedActors,
			Gatherer:       reg,
			Metrics:        m,
			MaxUploadBytes: int64(cfg.MaxImageBytes),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start
	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC health listening")
		if err := s.Start(); err != nil {
			log.Fatal().Err(err).Msg("gRPC serve error")
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP serve error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown")
	}
	s.Stop()
}

func setupLogging(cfg config.Config) {
	// gin uses debug as the default mode, we use release
	if _, ok := os.LookupEnv("GIN_MODE"); !ok {
		gin.SetMode(gin.ReleaseMode)
	}

	output := io.Writer(os.Stdout)
	if cfg.LogFormat == "human" {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(output).With().Timestamp().Logger()
}

// openStore returns the two tables for the configured backend and a close
// function.
func openStore(cfg config.Config) (ports.Table, ports.Table, func()) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), os.ModePerm); err != nil {
			log.Fatal().Err(err).Msg("creating data directory")
		}
		st, err := sqlstore.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("opening sqlite store")
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("using sqlite store")
		return st.Table(cfg.ExpensesTable), st.Table(cfg.GoalsTable), func() { _ = st.Close() }

	case config.StoreSheets:
		srv, err := sheets.NewService(context.Background(), []byte(cfg.GoogleJSONKey))
		if err != nil {
			log.Fatal().Err(err).Msg("connecting to google sheets")
		}
		log.Info().Str("sheet", cfg.SheetID).Msg("using google sheets store")
		return sheets.New(srv, cfg.SheetID, cfg.ExpensesTable), sheets.New(srv, cfg.SheetID, cfg.GoalsTable), func() {}
	}

	log.Warn().Msg("using in-memory store, records are lost on restart")
	return memstore.New(cfg.ExpensesTable), memstore.New(cfg.GoalsTable), func() {}
}
