package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/coldbrook/fleetwatch/internal/alert"
	"github.com/coldbrook/fleetwatch/internal/bus"
	"github.com/coldbrook/fleetwatch/internal/calib"
	"github.com/coldbrook/fleetwatch/internal/config"
	"github.com/coldbrook/fleetwatch/internal/fleet"
	"github.com/coldbrook/fleetwatch/internal/history"
	"github.com/coldbrook/fleetwatch/internal/ingest"
	"github.com/coldbrook/fleetwatch/internal/metrics"
)

// Server wraps the HTTP facade (spec §6): a chi router over
// every collaborator the ingest pipeline and alert engine also touch, with
// PIN-gated mutation and Prometheus instrumentation.
type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions bundles every collaborator NewServer wires into routes.
type ServerOptions struct {
	Config      *config.Config
	Pipeline    *ingest.Pipeline
	Bus         bus.Adapter
	Fleet       *fleet.Store
	Calib       *calib.Store
	History     *history.Store
	Alert       *alert.Engine
	Sched       *alert.Scheduler
	Contacts    *alert.ContactsStore
	ConfigCache *ingest.ConfigCache
	PINs        *PINStore
	Log         zerolog.Logger
}

// NewServer builds the router and the underlying http.Server, ready for Start.
func NewServer(opts ServerOptions) *Server {
	r := chi.NewRouter()

	var corsOrigins []string
	if opts.Config.CORSOrigins != "" {
		for _, o := range strings.Split(opts.Config.CORSOrigins, ",") {
			if s := strings.TrimSpace(o); s != "" {
				corsOrigins = append(corsOrigins, s)
			}
		}
	}

	r.Use(RequestID)
	r.Use(CORSWithOrigins(corsOrigins))
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 32 32"><rect width="32" height="32" rx="6" fill="#0b3d2e"/><path d="M16 6v8M10 26h12l-2-12h-8l-2 12z" stroke="#6fe3b4" stroke-width="2" fill="none" stroke-linecap="round" stroke-linejoin="round"/></svg>`))
	})

	if opts.Config.MetricsEnabled {
		var pool *pgxpool.Pool
		if opts.History.Warm != nil {
			pool = opts.History.Warm.Pool()
		}
		collector := metrics.NewCollector(opts.Fleet, pool)
		prometheus.MustRegister(collector)
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	}

	tanks := NewTanksHandler(opts.Fleet)
	clients := NewClientsHandler(opts.Fleet, opts.Alert, opts.Sched, opts.Pipeline)
	unloads := NewUnloadsHandler(opts.History.UnloadLog)
	histHandler := NewHistoryHandler(opts.History)
	calibration := NewCalibrationHandler(opts.Calib)
	contacts := NewContactsHandler(opts.Contacts, opts.Fleet)
	cfgHandler := NewConfigHandler(opts.Bus, opts.ConfigCache)
	settings := NewServerSettingsHandler(opts.Alert, opts.Sched)
	pinHandler := NewPINHandler(opts.PINs)
	control := NewControlHandler(opts.Pipeline, opts.Bus)
	serialLogs := NewSerialLogsHandler(opts.History.SerialLogs, opts.Bus)

	r.Route("/api", func(r chi.Router) {
		r.Use(MaxBodySize(16 << 10)) // spec §6: bodies > 16 KiB -> 413
		if opts.Config.MetricsEnabled {
			r.Use(metrics.InstrumentHandler)
		}

		// POST /api/pin self-gates via PINStore.Set and must stay reachable
		// even before any PIN is configured (bootstrap) or to rotate one.
		r.Post("/pin", pinHandler.SetPIN)

		r.Group(func(r chi.Router) {
			r.Use(PINAuth(opts.PINs))

			r.Get("/tanks", tanks.List)
			r.Get("/clients", clients.List)
			r.Get("/unloads", unloads.List)
			r.Get("/history", histHandler.Trends)
			r.Get("/history/compare", histHandler.Compare)
			r.Get("/history/yoy", histHandler.YoY)
			r.Get("/calibration", calibration.Get)
			r.Post("/calibration", calibration.Submit)
			r.Get("/contacts", contacts.Get)
			r.Post("/contacts", contacts.Update)
			r.Post("/config", cfgHandler.Dispatch)
			r.Post("/server-settings", settings.Update)
			r.Post("/refresh", control.Refresh)
			r.Post("/relay", control.Relay)
			r.Post("/relay/clear", control.RelayClear)
			r.Post("/pause", control.Pause)
			r.Get("/serial-logs", serialLogs.List)
			r.Get("/serial-export", serialLogs.Export)

			r.Group(func(r chi.Router) {
				r.Use(RateLimiter(opts.Config.RateLimitRPS, opts.Config.RateLimitBurst))
				r.Post("/serial-request", serialLogs.Request)
			})
		})
	})

	srv := &http.Server{
		Addr:         opts.Config.HTTPAddr,
		Handler:      r,
		ReadTimeout:  opts.Config.ReadTimeout,
		WriteTimeout: opts.Config.WriteTimeout,
		IdleTimeout:  opts.Config.IdleTimeout,
	}

	return &Server{http: srv, log: opts.Log}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
