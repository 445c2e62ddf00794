// Command raider is the CLI entry point for the credential-testing engine:
// it loads layered configuration, resolves the selected probe plugin,
// wires loot sinks and the optional live dashboard, installs a
// signal-driven stop latch, and runs the dispatcher.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ocx/raider/internal/config"
	"github.com/ocx/raider/internal/dashboard"
	"github.com/ocx/raider/internal/dispatch"
	"github.com/ocx/raider/internal/loot"
	"github.com/ocx/raider/internal/notify"
	"github.com/ocx/raider/internal/probe"
	"github.com/ocx/raider/internal/registry"
	"github.com/ocx/raider/internal/session"

	// Blank-import every probe package so its init() self-registers with
	// the default registry before main() resolves the selected plugin.
	_ "github.com/ocx/raider/internal/probes/ftp"
	_ "github.com/ocx/raider/internal/probes/postgres"
	_ "github.com/ocx/raider/internal/probes/redis"
	_ "github.com/ocx/raider/internal/probes/ssh"
)

func main() {
	opts, err := config.Load("raider.yaml", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "raider:", err)
		os.Exit(1)
	}

	reg := registry.Default()

	if opts.ListPlugins {
		printPlugins(reg)
		return
	}

	p, err := reg.Setup(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "raider:", err)
		os.Exit(1)
	}

	// The dashboard, when enabled, is built before the sink so buildSink can
	// fan loot into it alongside the configured persistence sink(s). It
	// reads the session's own counters directly (Done/Errors are safe to
	// poll concurrently); the unreachable set itself is dispatch-local and
	// not threaded back out, so /stats and /metrics always report
	// unreachable_targets as 0 (the progress push carries the real count).
	var dash *dashboard.Dashboard
	var onProgress func(done, errors uint64, unreachableCount int)

	sess := session.New(opts, nil)
	if opts.Dashboard.Addr != "" {
		dash = dashboard.New(reg, sess, nil)
		onProgress = dash.NotifyProgress
		go func() {
			if err := dash.Serve(opts.Dashboard.Addr); err != nil {
				slog.Error("dashboard stopped", "error", err)
			}
		}()
	}

	sink, err := buildSink(opts, dash)
	if err != nil {
		fmt.Fprintln(os.Stderr, "raider:", err)
		os.Exit(1)
	}
	defer sink.Close()
	sess.SetSink(sink)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		sess.Stop()
	}()

	slog.Info("starting run",
		"plugin", opts.Plugin,
		"concurrency", opts.Concurrency,
		"targets", len(opts.Targets))

	if err := dispatch.Run(ctx, p, sess, onProgress); err != nil {
		sink.Close()
		fmt.Fprintln(os.Stderr, "raider:", err)
		os.Exit(1)
	}

	slog.Info("run complete", "done", sess.Done(), "errors", sess.Errors())
}

func printPlugins(reg *registry.Registry) {
	plugins := reg.List()

	longest := 0
	for _, p := range plugins {
		if len(p.Name) > longest {
			longest = len(p.Name)
		}
	}
	for _, p := range plugins {
		fmt.Printf("%-*s  %s\n", longest, p.Name, p.Description)
	}
}

func buildSink(opts *config.Options, dash *dashboard.Dashboard) (loot.Sink, error) {
	var sinks []loot.Sink

	if dash != nil {
		sinks = append(sinks, dashboard.NewSink(dash))
	}

	jsonlPath := opts.Sinks.JSONLPath
	if jsonlPath == "" {
		jsonlPath = "-"
	}
	jsonl, err := loot.NewJSONLSink(jsonlPath)
	if err != nil {
		return nil, err
	}
	sinks = append(sinks, jsonl)

	if opts.Sinks.PostgresDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pg, err := loot.NewPostgresSink(ctx, opts.Sinks.PostgresDSN)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
	}

	if opts.Sinks.SupabaseURL != "" {
		sb, err := loot.NewSupabaseSink(opts.Sinks.SupabaseURL, opts.Sinks.SupabaseKey)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sb)
	}

	if opts.Sinks.GCPProjectID != "" && opts.Sinks.PubSubTopic != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		ps, err := loot.NewPubSubSink(ctx, opts.Sinks.GCPProjectID, opts.Sinks.PubSubTopic)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ps)
	}

	if opts.Sinks.GCPProjectID != "" && opts.Sinks.Spanner.InstanceID != "" && opts.Sinks.Spanner.DatabaseID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		sp, err := loot.NewSpannerSink(ctx, opts.Sinks.GCPProjectID, opts.Sinks.Spanner.InstanceID, opts.Sinks.Spanner.DatabaseID)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sp)
	}

	fanout := loot.NewFanout(sinks...)

	if opts.Notify.Enabled && opts.Notify.WebhookURL != "" {
		if opts.Notify.CloudTasks && opts.Sinks.GCPProjectID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return notify.NewCloudTasksSink(ctx, fanout, opts.Sinks.GCPProjectID,
				opts.Notify.LocationID, opts.Notify.QueueID, opts.Notify.WebhookURL, opts.Notify.FallbackCount)
		}
		return &httpNotifySink{Sink: fanout, notifier: notify.NewHTTPNotifier(opts.Notify.WebhookURL, 2)}, nil
	}

	return fanout, nil
}

// httpNotifySink decorates a Sink, pushing every recorded loot to the
// in-memory HTTP webhook notifier used when Cloud Tasks is not configured.
type httpNotifySink struct {
	loot.Sink
	notifier *notify.HTTPNotifier
}

func (s *httpNotifySink) Add(ctx context.Context, l probe.Loot) error {
	if err := s.Sink.Add(ctx, l); err != nil {
		return err
	}
	s.notifier.Notify(l)
	return nil
}

func (s *httpNotifySink) Close() error {
	s.notifier.Shutdown()
	return s.Sink.Close()
}
