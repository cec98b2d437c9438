package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/glabrego/newsreader/internal/config"
	"github.com/glabrego/newsreader/internal/extract"
	"github.com/glabrego/newsreader/internal/logging"
	"github.com/glabrego/newsreader/internal/reader"
	"github.com/glabrego/newsreader/internal/source"
	"github.com/glabrego/newsreader/internal/storage"
)

const storageInitTimeout = 15 * time.Second

// session is one opened engine with the resources behind it.
type session struct {
	engine  *reader.Engine
	logger  *log.Logger
	closers []io.Closer
}

type opener func(ctx context.Context) (*session, error)

func (s *session) Close() {
	if s.engine != nil {
		s.engine.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && s.logger != nil {
			s.logger.Warn("close failed", "err", err)
		}
	}
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	logger, logFile, err := logging.New(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logging init error: %w", err)
	}
	s := &session{logger: logger, closers: []io.Closer{logFile}}

	store := openStore(ctx, cfg, s)
	httpClient := &http.Client{Timeout: cfg.FetchTimeout}
	s.engine = reader.New(
		source.NewRSSFetcher(httpClient, cfg.UserAgent),
		extract.NewFetcher(httpClient, cfg.UserAgent),
		store,
		reader.WithLogger(logger),
		reader.WithFetchTimeout(cfg.FetchTimeout),
		reader.WithMaxConcurrentFetches(cfg.MaxConcurrentFetches),
	)
	s.engine.Load(ctx)
	logger.Info("session opened", "db", cfg.DBPath, "feeds", len(s.engine.ListFeeds()))
	return s, nil
}

// openStore falls back to an in-memory store when the database cannot be
// used, so the reader still runs without persistence.
func openStore(ctx context.Context, cfg config.Config, s *session) reader.SettingsStore {
	ctx, cancel := context.WithTimeout(ctx, storageInitTimeout)
	defer cancel()

	repo, err := storage.NewRepository(cfg.DBPath)
	if err != nil {
		s.logger.Warn("settings database unavailable, using memory", "path", cfg.DBPath, "err", err)
		return storage.NewMemory()
	}
	if err := repo.Init(ctx); err != nil {
		_ = repo.Close()
		s.logger.Warn("settings schema failed, using memory", "path", cfg.DBPath, "err", err)
		return storage.NewMemory()
	}
	if err := repo.CheckWritable(ctx); err != nil {
		s.logger.Warn("settings database is not writable, changes will not persist", "path", cfg.DBPath, "err", err)
	}
	s.closers = append(s.closers, repo)
	return repo
}
