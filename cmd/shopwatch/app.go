package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"shopwatch/internal/config"
	"shopwatch/internal/dpop"
	"shopwatch/internal/model"
	"shopwatch/internal/notify"
	"shopwatch/internal/pipeline"
	"shopwatch/internal/source"
	"shopwatch/internal/source/feed"
	"shopwatch/internal/source/lashinbang"
	"shopwatch/internal/source/mercari"
	"shopwatch/internal/source/yahoo"
	"shopwatch/internal/storage"
)

// app holds everything a command needs after configuration is loaded.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	store storage.Storage
}

func newApp(ctx context.Context) (*app, error) {
	config.LoadDotEnv(slog.Default())

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}

	store, err := storage.NewSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	return &app{cfg: cfg, log: log, store: store}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("close database", "error", err)
	}
}

func (a *app) keywords() ([]model.Keyword, error) {
	return config.LoadKeywords(a.cfg.KeywordsPath, a.cfg.Sources(), a.log)
}

func (a *app) adapters() []source.Adapter {
	headers := func(src model.Source) source.RequestSigner {
		if h, ok := a.cfg.ExtraHeaders[src]; ok {
			return h
		}
		return nil
	}

	adapters := []source.Adapter{
		yahoo.New(yahoo.Options{
			BaseURL: a.cfg.YahooBaseURL,
			Timeout: a.cfg.RequestTimeout,
			Signer:  headers(model.SourceYahoo),
		}),
		mercari.New(mercari.Options{
			BaseURL: a.cfg.MercariBaseURL,
			Timeout: a.cfg.RequestTimeout,
			Proofs:  dpop.New(),
			Signer:  headers(model.SourceMercari),
		}),
		lashinbang.New(lashinbang.Options{
			BaseURL: a.cfg.LashinbangBaseURL,
			ShopURL: a.cfg.LashinbangShopURL,
			Timeout: a.cfg.RequestTimeout,
			Signer:  headers(model.SourceLashinbang),
		}),
	}
	if a.cfg.FeedURLTemplate != "" {
		adapters = append(adapters, feed.New(feed.Options{
			URLTemplate: a.cfg.FeedURLTemplate,
			Timeout:     a.cfg.RequestTimeout,
			Signer:      headers(model.SourceFeed),
		}))
	}
	return adapters
}

func (a *app) runner(dryRun bool) *pipeline.Runner {
	return pipeline.New(a.adapters(), a.store, a.log,
		pipeline.WithBaseline(a.cfg.BaselineFirstRun),
		pipeline.WithDryRun(dryRun),
	)
}

// senders builds every configured delivery channel. A channel that cannot
// be set up is logged and left out.
func (a *app) senders() notify.Multi {
	var senders notify.Multi
	if a.cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(a.cfg.TelegramBotToken, a.cfg.TelegramChatID, a.log)
		if err != nil {
			a.log.Error("set up telegram delivery", "error", err)
		} else {
			senders = append(senders, tg)
		}
	}
	if smtp := a.cfg.SMTP; smtp != nil {
		senders = append(senders, notify.NewEmail(notify.SMTPConfig{
			Server:   smtp.Server,
			Port:     smtp.Port,
			User:     smtp.User,
			Password: smtp.Password,
			From:     smtp.From,
			To:       smtp.To,
		}))
	}
	return senders
}
