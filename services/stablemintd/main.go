package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	enginecfg "stablemint/config"
	"stablemint/gateway/middleware"
	"stablemint/gateway/routes"
	"stablemint/native/susd"
	"stablemint/observability/logging"
	"stablemint/oracle"
	daemoncfg "stablemint/services/stablemintd/config"
	"stablemint/state"
	"stablemint/token"
)

func main() {
	var cfgPath, enginePath string
	flag.StringVar(&cfgPath, "config", "services/stablemintd/config.yaml", "path to daemon config")
	flag.StringVar(&enginePath, "engine-config", "config/stablemint.toml", "path to engine config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("STABLEMINT_ENV"))
	logger := logging.Setup("stablemintd", env, logging.Options{})

	svcCfg, err := daemoncfg.Load(cfgPath)
	if err != nil {
		fatal(logger, "load daemon config", err)
	}
	if svcCfg.Log.File != "" {
		logger = logging.Setup("stablemintd", env, logging.Options{
			FilePath:   svcCfg.Log.File,
			MaxSizeMB:  svcCfg.Log.MaxSizeMB,
			MaxBackups: svcCfg.Log.MaxBackups,
			MaxAgeDays: svcCfg.Log.MaxAgeDays,
		})
	}

	engCfg, err := enginecfg.Load(enginePath)
	if err != nil {
		fatal(logger, "load engine config", err)
	}
	engine, err := buildEngine(engCfg)
	if err != nil {
		fatal(logger, "build engine", err)
	}
	logger.Info("engine ready",
		"collateral_assets", engine.Registry().Len(),
		"module_address", engine.ModuleAddress().Hex(),
	)

	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    svcCfg.Auth.Enabled,
		HMACSecret: svcCfg.Secret(),
		Issuer:     svcCfg.Auth.Issuer,
		Audience:   svcCfg.Auth.Audience,
	}, logger)
	limiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		"reads": {
			RequestsPerMinute: svcCfg.RateLimits.Reads.RequestsPerMinute,
			Burst:             svcCfg.RateLimits.Reads.Burst,
		},
		"mutations": {
			RequestsPerMinute: svcCfg.RateLimits.Mutations.RequestsPerMinute,
			Burst:             svcCfg.RateLimits.Mutations.Burst,
		},
	})
	defer limiter.Close()
	obs := middleware.NewObservability("stablemint", logger)

	handler := routes.New(routes.Config{
		Engine:        engine,
		Authenticator: auth,
		RateLimiter:   limiter,
		Observability: obs,
		CORS:          middleware.CORSConfig{AllowedOrigins: svcCfg.CORS.AllowedOrigins},
	})

	server := &http.Server{
		Addr:              svcCfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("stablemintd listening", "addr", svcCfg.ListenAddress)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("forcing server close", "error", err)
			_ = server.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "serve http", err)
		}
	}
}

// buildEngine assembles the world state from the engine config: one ledger
// token per collateral entry, a manual feed seeded with the bootstrap price,
// the debt token under engine authority, and the oracle validator.
func buildEngine(cfg *enginecfg.Config) (*susd.Engine, error) {
	store := state.NewStore()
	moduleAddr, err := cfg.ModuleAddress()
	if err != nil {
		return nil, err
	}
	debtAddr, err := cfg.DebtAddress()
	if err != nil {
		return nil, err
	}
	debt := token.NewDebtToken(store, debtAddr, cfg.Debt.Symbol, cfg.Debt.Decimals, moduleAddr)

	entries := make([]susd.CollateralAsset, 0, len(cfg.Collateral))
	for _, entry := range cfg.Collateral {
		addr, err := entry.TokenAddress()
		if err != nil {
			return nil, err
		}
		feed := oracle.NewManualFeed(entry.FeedDecimals)
		if price := strings.TrimSpace(entry.BootstrapPrice); price != "" {
			whole, ok := new(big.Int).SetString(price, 10)
			if !ok || whole.Sign() <= 0 {
				return nil, fmt.Errorf("collateral %s: invalid bootstrap price %q", entry.Symbol, entry.BootstrapPrice)
			}
			scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(entry.FeedDecimals)), nil)
			feed.SetAnswer(new(big.Int).Mul(whole, scale), time.Now())
		}
		entries = append(entries, susd.CollateralAsset{
			Address:   addr,
			Symbol:    entry.Symbol,
			Decimals:  entry.Decimals,
			Ledger:    token.NewToken(store, addr, entry.Symbol, entry.Decimals),
			Feed:      feed,
			Heartbeat: entry.Heartbeat(),
		})
	}

	var sequencer oracle.Feed
	if cfg.Engine.SequencerFeed {
		seq := oracle.NewManualFeed(0)
		now := time.Now()
		// Report the sequencer as up since well before the grace window so
		// the engine is usable immediately after boot.
		seq.Set(oracle.RoundData{
			RoundID:         big.NewInt(1),
			Answer:          big.NewInt(0),
			StartedAt:       now.Add(-2 * cfg.GracePeriod()),
			UpdatedAt:       now,
			AnsweredInRound: big.NewInt(1),
		})
		sequencer = seq
	}
	validator := oracle.NewValidator(sequencer, cfg.GracePeriod())

	registry, err := susd.NewRegistry(entries...)
	if err != nil {
		return nil, err
	}
	return susd.NewEngine(moduleAddr, registry, debt, validator, store)
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
