package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"stablemint/gateway/middleware"
	"stablemint/native/susd"
)

// Config assembles the HTTP surface around one engine instance. Optional
// pieces left nil are skipped.
type Config struct {
	Engine        *susd.Engine
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
}

// New builds the gateway router: read endpoints under one rate budget,
// position mutations and liquidations under another, each behind their own
// auth scope.
func New(cfg Config) http.Handler {
	h := &handlers{engine: cfg.Engine}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Observability != nil {
		r.Handle("/metrics", cfg.Observability.MetricsHandler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(read chi.Router) {
			if cfg.Observability != nil {
				read.Use(cfg.Observability.Middleware("read"))
			}
			if cfg.RateLimiter != nil {
				read.Use(cfg.RateLimiter.Middleware("reads"))
			}
			read.Get("/assets", h.listAssets)
			read.Get("/assets/{address}/price", h.assetPrice)
			read.Get("/positions/{address}", h.getPosition)
			read.Get("/supply", h.totalSupply)
		})

		v1.Group(func(write chi.Router) {
			if cfg.Observability != nil {
				write.Use(cfg.Observability.Middleware("positions"))
			}
			if cfg.RateLimiter != nil {
				write.Use(cfg.RateLimiter.Middleware("mutations"))
			}
			if cfg.Authenticator != nil {
				write.Use(cfg.Authenticator.Middleware("positions:write"))
			}
			write.Post("/positions/deposit", h.deposit)
			write.Post("/positions/mint", h.mint)
			write.Post("/positions/deposit-and-mint", h.depositAndMint)
			write.Post("/positions/burn", h.burn)
			write.Post("/positions/redeem", h.redeem)
			write.Post("/positions/redeem-for-debt", h.redeemForDebt)
		})

		v1.Group(func(liq chi.Router) {
			if cfg.Observability != nil {
				liq.Use(cfg.Observability.Middleware("liquidations"))
			}
			if cfg.RateLimiter != nil {
				liq.Use(cfg.RateLimiter.Middleware("mutations"))
			}
			if cfg.Authenticator != nil {
				liq.Use(cfg.Authenticator.Middleware("liquidations:write"))
			}
			liq.Post("/liquidations", h.liquidate)
		})
	})

	return r
}
