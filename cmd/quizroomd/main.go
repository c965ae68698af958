// Package main wires together the quiz-room server: configuration,
// repositories, use-cases, the socket dispatcher, the reaper, and the
// HTTP/WebSocket listener.
//
// Connection flow:
//  1. Client connects via WebSocket to /ws.
//  2. Client sends an envelope naming one of the inbound events
//     (create_room, join_room, submit_answer, ...).
//  3. The dispatcher decodes the envelope, routes it through the Room
//     or Game use-cases, and the use-case broadcasts outbound events
//     back through the hub.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kwizo/quizroom/config"
	"github.com/kwizo/quizroom/internal/auth"
	"github.com/kwizo/quizroom/internal/dispatcher"
	"github.com/kwizo/quizroom/internal/quiz"
	"github.com/kwizo/quizroom/internal/ratelimit"
	"github.com/kwizo/quizroom/internal/reaper"
	"github.com/kwizo/quizroom/internal/roomrepo"
	"github.com/kwizo/quizroom/internal/timer"
	"github.com/kwizo/quizroom/internal/usecase"
)

// rateLimitEvents/rateLimitWindow bound how many inbound events a single
// socket may send per window before OnMessage starts dropping them.
const (
	rateLimitEvents = 30
	rateLimitWindow = time.Second
)

type server struct {
	cfg      *config.ServerConfig
	repo     roomrepo.Repository
	hub      *dispatcher.Hub
	handler  *dispatcher.Handler
	reaper   *reaper.Reaper
	timers   *timer.Service
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "quizroomd").Logger()

	srvCfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load server config")
	}
	roomCfg, err := config.LoadRoomConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load room config")
	}

	repo, err := newRepository(srvCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build room repository")
	}

	quizzes := quiz.NewStaticRepository(demoQuiz())

	hub := dispatcher.NewHub()
	timers := timer.NewService(roomCfg.TimerTick)

	roomUC := usecase.NewRoomUseCases(repo, quizzes, hub, timers, roomCfg, logger)
	gameUC := usecase.NewGameUseCases(repo, quizzes, hub, timers, roomCfg, logger)

	verifier := auth.NewVerifier(srvCfg.JWTSecret)
	limiter := ratelimit.New(rateLimitEvents, rateLimitWindow)
	handler := dispatcher.NewHandler(hub, roomUC, gameUC, verifier, limiter, logger)

	rp := reaper.New(roomUC, logger)
	rp.Start()

	srv := &server{
		cfg:     srvCfg,
		repo:    repo,
		hub:     hub,
		handler: handler,
		reaper:  rp,
		timers:  timers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return srvCfg.EnableCORS
			},
		},
		log: logger,
	}

	logger.Info().
		Str("host", srvCfg.Host).
		Int("port", srvCfg.Port).
		Dur("playerGrace", roomCfg.PlayerGracePeriod).
		Dur("hostGrace", roomCfg.HostGracePeriod).
		Msg("quizroomd starting")

	if err := srv.run(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func newRepository(cfg *config.ServerConfig, logger zerolog.Logger) (roomrepo.Repository, error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("using in-memory room repository")
		return roomrepo.NewMemory(), nil
	}
	logger.Info().Str("redisURL", cfg.RedisURL).Msg("using redis room repository")
	return roomrepo.NewRedis(cfg.RedisURL, 6*time.Hour)
}

// run registers HTTP endpoints and blocks until a shutdown signal
// arrives, then drains background workers before returning.
func (s *server) run() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.reaper.Stop()
	s.timers.StopAll()
	return httpSrv.Shutdown(ctx)
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	socketID := uuid.NewString()
	conn := dispatcher.NewConnection(socketID, ws, s.hub, s.log)
	s.hub.Register(conn)

	go conn.WritePump()
	go func() {
		conn.ReadPump(s.handler.OnMessage)
		s.handler.OnClose(conn)
	}()
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleStats reports live room/player counts for backward-compatible
// polling dashboards that predate the socket protocol.
func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.repo.AllRooms(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("handleStats: listing rooms failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	players := 0
	for _, rm := range rooms {
		rm.RLock()
		players += rm.PlayerCount()
		rm.RUnlock()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"rooms":%d,"players":%d}`, len(rooms), players)
}

// demoQuiz seeds a single quiz so /ws is exercisable without an
// external quiz-authoring service wired in (spec.md §1).
func demoQuiz() quiz.Quiz {
	return quiz.Quiz{
		ID:             "demo",
		Title:          "General Knowledge",
		TotalQuestions: 2,
		Questions: []quiz.Question{
			{
				Text:             "What is the capital of France?",
				Options:          []string{"Berlin", "Paris", "Rome", "Madrid"},
				CorrectIndex:     1,
				TimeLimitSeconds: 20,
				Points:           1000,
			},
			{
				Text:             "What is 7 * 8?",
				Options:          []string{"54", "56", "58", "64"},
				CorrectIndex:     1,
				TimeLimitSeconds: 20,
				Points:           1000,
			},
		},
	}
}
