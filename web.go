package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Seednode/partyrooms/games"
	"github.com/Seednode/partyrooms/storage"
)

const (
	timeout         time.Duration = 10 * time.Second
	shutdownTimeout time.Duration = 5 * time.Second
)

// server holds everything the HTTP handlers share.
type server struct {
	cfg      *Config
	log      zerolog.Logger
	store    games.Store
	closer   io.Closer
	registry *games.Registry
	tokens   *games.Tokens
	engine   *games.Engine
	sweeper  *games.Sweeper
	mux      *httprouter.Router
}

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func (s *server) serveVersion() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(s.cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("partyrooms v" + releaseVersion + "\n"))
		if err != nil {
			s.log.Debug().Err(err).Msg("SERVE: failed to write version")

			return
		}

		s.log.Debug().
			Int("bytes", written).
			Str("remote", realIP(r)).
			Dur("took", since(startTime)).
			Msg("SERVE: version page")
	}
}

// openStore picks SQLite when a database path is configured and memory
// otherwise. The returned closer is nil for the memory store.
func openStore(cfg *Config, log zerolog.Logger) (games.Store, io.Closer, error) {
	if cfg.db == "" {
		log.Info().Msg("STORE: keeping rooms in memory")
		return storage.NewMemory(), nil, nil
	}

	db, err := storage.OpenSQLite(cfg.db, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.db, err)
	}
	log.Info().Str("path", cfg.db).Msg("STORE: keeping rooms in sqlite")
	return db, db, nil
}

func tokenSecret(cfg *Config) ([]byte, error) {
	if cfg.tokenSecret != "" {
		return []byte(cfg.tokenSecret), nil
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

func newServer(ctx context.Context, cfg *Config, log zerolog.Logger) (*server, error) {
	store, closer, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	secret, err := tokenSecret(cfg)
	if err != nil {
		return nil, err
	}

	s := &server{
		cfg:      cfg,
		log:      log,
		store:    store,
		closer:   closer,
		registry: games.NewRegistry(log),
		tokens:   games.NewTokens(secret, cfg.roomTTL),
		mux:      httprouter.New(),
	}

	s.engine = games.NewEngine(store, s.registry, games.Options{
		RoomTTL:      cfg.roomTTL,
		GuessTimeout: cfg.guessTimeout,
		Tokens:       s.tokens,
		Log:          log,
	})
	s.sweeper = games.NewSweeper(store, s.registry, cfg.sweepInterval, log)

	for _, sd := range cfg.seeds {
		if err := s.engine.Seed(ctx, sd.code, sd.gameType); err != nil {
			s.Close()
			return nil, fmt.Errorf("seed room %s: %w", sd.code, err)
		}
		log.Info().Str("room", sd.code).Str("game", string(sd.gameType)).Msg("GAMES: permanent room ready")
	}

	s.routes()

	return s, nil
}

func (s *server) routes() {
	prefix := strings.TrimSuffix(s.cfg.prefix, "/")
	s.cfg.prefix = prefix

	s.mux.PanicHandler = serverError(s.cfg, s.log)

	s.mux.GET(prefix+"/", s.serveHomePage())

	s.mux.GET(prefix+"/healthz", s.serveHealthCheck())

	s.mux.GET(prefix+"/robots.txt", s.serveRobots())

	s.mux.GET(prefix+"/version", s.serveVersion())

	if s.cfg.profile {
		registerProfileHandlers(s.cfg, s.mux)
	}

	s.registerRooms()
}

func (s *server) Close() {
	if s.engine != nil {
		s.engine.Close()
	}
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			s.log.Error().Err(err).Msg("STORE: failed to close")
		}
	}
}

func ServePage(ctx context.Context, cfg *Config) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	log := newLogger(cfg, os.Stderr)

	log.Info().Str("version", releaseVersion).Msg("START: partyrooms")

	s, err := newServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           s.mux,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Msgf("SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)

		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return s.sweeper.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("STOP: shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
