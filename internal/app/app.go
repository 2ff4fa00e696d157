package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/krishnarajt/second-thought-backend/internal/api"
	"github.com/krishnarajt/second-thought-backend/internal/config"
	"github.com/krishnarajt/second-thought-backend/internal/dispatch"
	"github.com/krishnarajt/second-thought-backend/internal/store"
	"github.com/krishnarajt/second-thought-backend/internal/telegram"
)

// App owns the process: storage, the Bot API long-poll loop, the HTTP
// API and the notification dispatcher.
type App struct {
	cfg        config.Config
	log        *zap.Logger
	bot        *tgbotapi.BotAPI
	httpSrv    *http.Server
	repo       store.Repo
	router     *telegram.Router
	dispatcher *dispatch.Dispatcher
}

// Logger and Repo satisfy api.App.
func (a *App) Logger() *zap.Logger { return a.log }
func (a *App) Repo() store.Repo    { return a.repo }

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	return &App{cfg: cfg, log: log, bot: bot}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting second-thought backend",
		zap.String("http", a.cfg.HTTPAddr),
		zap.Duration("cadence", a.cfg.DispatchCadence),
	)

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready")

	a.router = telegram.NewRouter(a.bot, a.log, a.repo)

	a.httpSrv = &http.Server{
		Addr:         a.cfg.HTTPAddr,
		Handler:      api.NewRouter(a),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	a.dispatcher = dispatch.New(a.repo, a.log, telegram.NewBotSender(a.bot), dispatch.Options{
		Cadence:         a.cfg.DispatchCadence,
		ClaimStaleAfter: a.cfg.ClaimStaleAfter,
		SendTimeout:     a.cfg.SendTimeout,
		RetryMax:        a.cfg.SendRetryMax,
		RetryBase:       a.cfg.SendRetryBase,
		RetryCap:        a.cfg.SendRetryCap,
		SendsPerSecond:  a.cfg.SendsPerSecond,
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.dispatcher.Start(ctx)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			a.dispatcher.Stop()

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()

			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			if a.repo != nil {
				_ = a.repo.Close()
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
