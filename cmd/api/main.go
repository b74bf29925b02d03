package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-nerve/internal/audio"
	"voice-nerve/internal/audit"
	"voice-nerve/internal/auth"
	"voice-nerve/internal/calls"
	"voice-nerve/internal/config"
	"voice-nerve/internal/delegate"
	"voice-nerve/internal/dialog"
	"voice-nerve/internal/report"
	"voice-nerve/internal/session"
	"voice-nerve/internal/telephony"
	"voice-nerve/pkg/logger"
	"voice-nerve/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	// Postgres is optional: without DB_HOST call records live in memory.
	var db *sql.DB
	var callsRepo calls.Repository = calls.NewMemoryRepo()
	if cfg.DB.Host != "" {
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		callsRepo = calls.NewPostgresRepo(db)
	}

	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	var sessions session.Store
	if cfg.Session.Store == "redis" {
		sessions = session.NewRedisStore(rdb, cfg.Session.TTL)
	} else {
		mem := session.NewMemoryStore(cfg.Session.TTL)
		defer mem.Close()
		sessions = mem
	}

	var audioCache *audio.Cache
	if cfg.TTS.URL != "" {
		audioCache = audio.NewCache(audio.NewHTTPSynthesizer(cfg.TTS.URL, cfg.TTS.Timeout), cfg.TTS.Voice)
		go preloadPhrases(rootCtx, log, audioCache)
	}

	engine := dialog.Engine{
		MaxRetries:          cfg.Dialog.MaxRetries,
		InputTimeoutSeconds: cfg.Dialog.InputTimeoutSeconds,
	}
	sources := []delegate.DecisionSource{}
	if cfg.Delegate.URL != "" {
		src := delegate.NewHTTPSource(cfg.Delegate.URL, cfg.Delegate.Timeout)
		src.InputTimeoutSeconds = cfg.Dialog.InputTimeoutSeconds
		sources = append(sources, src)
	}
	sources = append(sources, delegate.EngineSource{Engine: engine})
	decider := delegate.Chain{Sources: sources}

	formatter, err := telephony.NewFormatter(cfg.Dialog.Dialect, cfg.FlowCallbackURL())
	if err != nil {
		log.Error("formatter init failed", "err", err)
		os.Exit(1)
	}

	provider := telephony.NewExotel(telephony.ExotelConfig{
		BaseURL:           cfg.ExotelBaseURL(),
		APIKey:            cfg.Exotel.APIKey,
		APIToken:          cfg.Exotel.APIToken,
		CallerID:          cfg.Exotel.CallerID,
		FlowAppURL:        cfg.FlowAppURL(),
		StatusCallbackURL: cfg.StatusCallbackURL(),
	})

	var reporter *report.Client
	if cfg.Report.URL != "" {
		reporter = report.NewClient(cfg.Report.URL, cfg.Report.Token, cfg.Report.Timeout)
	}

	trail := audit.NewService(audit.NewMemoryRepo())

	var idem calls.IdempotencyStore = calls.NewMemoryIdempotency()
	var caps calls.CapGuard
	if rdb != nil {
		idem = calls.NewRedisIdempotency(rdb)
		if cfg.Exotel.MaxLiveCalls > 0 {
			caps = calls.NewRedisCapGuard(rdb, cfg.Exotel.MaxLiveCalls,
				time.Duration(cfg.Exotel.CallTimeLimitSeconds)*time.Second*2)
		}
	}

	initiator := &calls.Initiator{
		Provider:           provider,
		Repo:               callsRepo,
		Idem:               idem,
		Audio:              audioCache,
		Caps:               caps,
		TimeLimitSeconds:   cfg.Exotel.CallTimeLimitSeconds,
		RingTimeoutSeconds: cfg.Exotel.AnswerTimeoutSeconds,
		OnPlaced: func(ctx context.Context, call calls.Call) {
			if err := trail.LogCallInitiated(ctx, call.CallSid, call.OrderID, string(call.Kind)); err != nil {
				log.Warn("trail append failed", "call_sid", call.CallSid, "err", err)
			}
		},
	}

	flowHandler := telephony.FlowHandler{
		Sessions: sessions,
		Decider:  decider,
		Format:   formatter,
		Audio:    audioCache,
		AudioURL: func(id string) string {
			return cfg.App.PublicBaseURL + "/audio/" + id
		},
		OnCallback: func(ctx context.Context, sess session.Session, digits string) {
			if err := trail.LogCallback(ctx, sess.CallID, sess.Context.OrderID, digits); err != nil {
				log.Warn("trail append failed", "call_sid", sess.CallID, "err", err)
			}
		},
		OnDigits: func(ctx context.Context, sess session.Session, digits string) {
			if err := trail.LogDigits(ctx, sess.CallID, sess.Context.OrderID, digits); err != nil {
				log.Warn("trail append failed", "call_sid", sess.CallID, "err", err)
			}
		},
		OnTerminal: func(ctx context.Context, sess session.Session, step dialog.Step) {
			meta, _ := json.Marshal(step.Outcome)
			if err := trail.LogTerminalStep(ctx, sess.CallID, sess.Context.OrderID, string(step.Outcome.Kind), string(meta)); err != nil {
				log.Warn("trail append failed", "call_sid", sess.CallID, "err", err)
			}
			if err := callsRepo.Close(ctx, sess.CallID, calls.Call{
				Outcome:         step.Outcome.Kind,
				PrepTimeMinutes: step.Outcome.PrepTimeMinutes,
			}); err != nil && !errors.Is(err, calls.ErrNotFound) {
				log.Warn("call close failed", "call_sid", sess.CallID, "err", err)
			}
			if reporter.Enabled() {
				reporter.PushAsync(report.Result{
					CallSid:         sess.CallID,
					Kind:            sess.Context.CallKind,
					OrderID:         sess.Context.OrderID,
					Outcome:         step.Outcome.Kind,
					PrepTimeMinutes: step.Outcome.PrepTimeMinutes,
					CollectedInputs: sess.CollectedInputs,
				})
			}
		},
	}

	statusHandler := telephony.StatusHandler{
		Sessions: sessions,
		OnStatus: func(ctx context.Context, cb telephony.StatusCallback, live *session.Session) {
			if err := trail.LogStatus(ctx, cb.CallSid, cb.CallStatus, cb.DurationSeconds); err != nil {
				log.Warn("trail append failed", "call_sid", cb.CallSid, "err", err)
			}
			status := calls.StatusFromProvider(cb.CallStatus)
			if err := callsRepo.UpdateStatus(ctx, cb.CallSid, status, cb.DurationSeconds, cb.RecordingURL); err != nil && !errors.Is(err, calls.ErrNotFound) {
				log.Warn("call status update failed", "call_sid", cb.CallSid, "err", err)
			}
			if caps != nil {
				if err := caps.Release(ctx); err != nil {
					log.Warn("cap release failed", "call_sid", cb.CallSid, "err", err)
				}
			}
			// A session still live here means the dialog never reached a
			// terminal step; the order backend still needs an answer.
			if live != nil && reporter.Enabled() {
				reporter.PushAsync(report.Result{
					CallSid:         cb.CallSid,
					Kind:            live.Context.CallKind,
					OrderID:         live.Context.OrderID,
					Outcome:         dialog.OutcomeNoResponse,
					CollectedInputs: live.CollectedInputs,
					DurationSeconds: cb.DurationSeconds,
					RecordingURL:    cb.RecordingURL,
				})
			}
		},
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		Auth:    authManager,
		Flow:    flowHandler,
		Status:  statusHandler,
		Calls:   calls.Handler{Init: initiator, Repo: callsRepo},
		Audio:   audioCache,
		Session: sessions,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "dialect", string(cfg.Dialog.Dialect))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// preloadPhrases warms the audio cache so the first call of the day does not
// pay synthesis latency on every prompt fragment.
func preloadPhrases(ctx context.Context, log *slog.Logger, cache *audio.Cache) {
	start := time.Now()
	total := 0
	for _, lang := range []string{"hi", "en"} {
		n, err := cache.Preload(ctx, lang, dialog.PhraseLibrary(lang))
		if err != nil {
			log.Warn("phrase preload interrupted", "language", lang, "err", err)
			return
		}
		total += n
	}
	log.Info("phrase library preloaded",
		"phrases", total,
		"took", fmt.Sprintf("%.1fs", time.Since(start).Seconds()))
}
