package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"shopwatch/internal/config"
	"shopwatch/internal/model"
	"shopwatch/internal/notify"
	"shopwatch/internal/pipeline"
	"shopwatch/internal/storage"
)

type countingSender struct {
	reports []*pipeline.Report
}

func (s *countingSender) Send(_ context.Context, report *pipeline.Report) error {
	s.reports = append(s.reports, report)
	return nil
}

func TestWriteHistory(t *testing.T) {
	started := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	runs := []model.RunLog{
		{ID: 2, Source: model.SourceMercari, StartedAt: started, Pages: 1, Items: 120, New: 3, Discounted: 1},
		{ID: 1, Source: model.SourceYahoo, StartedAt: started, Errors: 1},
	}

	var buf bytes.Buffer
	writeHistory(&buf, runs)
	out := buf.String()

	for _, want := range []string{"SOURCE", "mercari", "yahoo", "2024-05-01 09:00 JST", "120"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	writeHistory(&buf, nil)
	if !strings.Contains(strings.ToLower(buf.String()), "no runs recorded yet") {
		t.Errorf("expected empty notice, got:\n%s", buf.String())
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "watch", "history"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing %q subcommand, have %v", want, names)
		}
	}
}

func TestWatchTickReusesSenders(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := &app{log: log}
	runner := pipeline.New(nil, storage.NewMemory(), log)
	sender := &countingSender{}

	var out bytes.Buffer
	tick := a.watchTick(runner, nil, notify.Multi{sender}, &out)
	tick(context.Background())
	tick(context.Background())

	if diff := cmp.Diff(2, len(sender.reports)); diff != "" {
		t.Errorf("delivered reports mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, strings.Count(out.String(), "shopwatch")); diff != "" {
		t.Errorf("printed reports mismatch (-want +got):\n%s", diff)
	}
}

func TestSendersWithoutTelegram(t *testing.T) {
	a := &app{
		cfg: &config.Config{SMTP: &config.SMTP{
			Server: "smtp.example.com", Port: 587, From: "bot@example.com", To: []string{"a@example.com"},
		}},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if diff := cmp.Diff(1, len(a.senders())); diff != "" {
		t.Errorf("senders mismatch (-want +got):\n%s", diff)
	}
}
