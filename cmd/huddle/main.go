package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/keiv/huddle/internal/adapters/engine"
	"github.com/keiv/huddle/internal/adapters/httpctl"
	"github.com/keiv/huddle/internal/app"
	"github.com/keiv/huddle/internal/chat"
	"github.com/keiv/huddle/internal/config"
	"github.com/keiv/huddle/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	// Explicit wiring: every service is constructed once here and passed
	// to its consumers. No package-level singletons.
	eng := engine.New(cfg.Engine, engine.SilenceSource{})
	sessions := app.NewSessionController(eng)
	participants := app.NewParticipantRegistry()
	media := app.NewMediaController(eng)

	chatMgr := chat.NewManager(cfg.Chat, sessionSender{sessions}, func(msg domain.ChatMessage) {
		log.Info().Str("module", "main").Str("from", msg.SenderName).Str("content", msg.Content).Msg("chat")
	})
	bridge := app.NewEventBridge(sessions, participants, chatMgr)
	quality := app.NewQualityMonitor(eng, cfg.Quality.Interval)

	sessions.OnStatus(func(status domain.SessionStatus) {
		switch status {
		case domain.StatusConnected:
			quality.Start(ctx)
		case domain.StatusIdle, domain.StatusError:
			quality.Stop()
		}
	})
	sessions.RegisterTeardown(quality.Stop)
	sessions.RegisterTeardown(bridge.Deactivate)
	sessions.RegisterTeardown(participants.Clear)
	sessions.RegisterTeardown(chatMgr.Reset)

	ctl := &httpctl.Controller{
		Sessions:     sessions,
		Participants: participants,
		Media:        media,
		Chat:         chatMgr,
		Quality:      quality,
		Bridge:       bridge,
	}

	r := httpctl.SetupRouter(cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Huddle control API started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	sessions.Disconnect(shutdownCtx)
	chatMgr.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Client exited gracefully")
}

// sessionSender routes chat signals through whatever session is live.
type sessionSender struct {
	sessions *app.SessionController
}

func (s sessionSender) Signal(ctx context.Context, signalType, payload string) error {
	sess := s.sessions.Session()
	if sess == nil {
		return fmt.Errorf("signal %s: no active session", signalType)
	}
	return sess.Signal(ctx, signalType, payload)
}
