// SPDX-License-Identifier: AGPL-3.0-or-later
// DMRHub - Run a DMR network server in a single binary
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// The source code is available at <https://github.com/USA-RedDragon/DMRHub>

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/chat"
	"github.com/USA-RedDragon/DMRHub/internal/chat/pipeline"
	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/db"
	"github.com/USA-RedDragon/DMRHub/internal/db/models"
	"github.com/USA-RedDragon/DMRHub/internal/http"
	"github.com/USA-RedDragon/DMRHub/internal/hub"
	"github.com/USA-RedDragon/DMRHub/internal/kv"
	"github.com/USA-RedDragon/DMRHub/internal/metadata"
	"github.com/USA-RedDragon/DMRHub/internal/metrics"
	"github.com/USA-RedDragon/DMRHub/internal/multiplayer"
	"github.com/USA-RedDragon/DMRHub/internal/pprof"
	"github.com/USA-RedDragon/DMRHub/internal/pubsub"
	"github.com/USA-RedDragon/DMRHub/internal/spectator"
	"github.com/USA-RedDragon/configulator"
	"github.com/go-co-op/gocron/v2"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "osu-coordinator",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("osu! multiplayer coordinator - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	c, err := configulator.FromContext[config.Config](ctx)
	if err != nil {
		return fmt.Errorf("failed to get config from context: %w", err)
	}

	cfg, err := c.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var logger *slog.Logger
	switch cfg.LogLevel {
	case config.LogLevelDebug:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case config.LogLevelInfo:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	case config.LogLevelWarn:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case config.LogLevelError:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	}
	slog.SetDefault(logger)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	var cleanup func(context.Context) error
	if cfg.Metrics.OTLPEndpoint != "" {
		cleanup = initTracer(cfg)
		defer func() {
			err := cleanup(ctx)
			if err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}
	go metrics.CreateMetricsServer(cfg)
	go pprof.CreatePProfServer(cfg)

	database, err := db.MakeDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	kvStore, err := kv.MakeKV(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to key-value store: %w", err)
	}

	ps, err := pubsub.MakePubSub(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to pubsub: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(func() {
			if err := models.PruneExpired(database, time.Now()); err != nil {
				slog.Error("failed to prune expired auth records", "error", err)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to schedule auth record pruning", "error", err)
	}
	scheduler.Start()

	// Each hub's service needs the hub to register its RPC handlers, and
	// the hub needs the service as its connect/disconnect Lifecycle, so
	// every hub is built through a DeferredLifecycle: construct the
	// lifecycle, build the hub, build the service against the hub, then
	// bind the service as the lifecycle's target.
	mpLifecycle := hub.NewDeferredLifecycle()
	mpHub := hub.New("multiplayer", cfg.Hub.PingInterval, mpLifecycle)
	mpManager := multiplayer.NewManager(database, cfg, mpHub, ps)
	mpLifecycle.Set(mpManager)

	specLifecycle := hub.NewDeferredLifecycle()
	specHub := hub.New("spectator", cfg.Hub.PingInterval, specLifecycle)
	specService := spectator.NewService(database, specHub, cfg)
	specLifecycle.Set(specService)

	metaLifecycle := hub.NewDeferredLifecycle()
	metaHub := hub.New("metadata", cfg.Hub.PingInterval, metaLifecycle)
	metaService := metadata.NewService(database, metaHub)
	metaLifecycle.Set(metaService)

	chatPipeline := pipeline.New(kvStore, database)
	if err := chatPipeline.Seed(ctx); err != nil {
		slog.Error("failed to seed chat message pipeline", "error", err)
	}

	chatLifecycle := hub.NewDeferredLifecycle()
	chatHub := hub.New("chat", cfg.Hub.PingInterval, chatLifecycle)
	chatService := chat.NewService(database, chatPipeline, chatHub)
	chatLifecycle.Set(chatService)

	pipelineCtx, cancelPipeline := context.WithCancel(ctx)
	defer cancelPipeline()
	go chatPipeline.RunBatchPersister(pipelineCtx)
	go chatService.RunRoomMembershipSync(pipelineCtx, ps)

	hubs := map[string]*hub.Hub{
		"multiplayer": mpHub,
		"spectator":   specHub,
		"metadata":    metaHub,
		"chat":        chatHub,
	}

	ready := &atomic.Bool{}
	ready.Store(true)

	server := http.MakeServer(cfg, database, kvStore, hubs, chatService, chatPipeline, ready)
	err = server.Start()
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	defer server.Stop()

	stop := func(sig os.Signal) {
		slog.Error("shutting down due to signal", "signal", sig)
		ready.Store(false)
		cancelPipeline()
		wg := new(sync.WaitGroup)

		wg.Add(1)
		go func(wg *sync.WaitGroup) {
			defer wg.Done()
			if err := scheduler.StopJobs(); err != nil {
				slog.Error("failed to stop scheduler jobs", "error", err)
			}
			if err := scheduler.Shutdown(); err != nil {
				slog.Error("failed to stop scheduler", "error", err)
			}
		}(wg)

		wg.Add(1)
		go func(wg *sync.WaitGroup) {
			defer wg.Done()
			if cfg.Metrics.OTLPEndpoint != "" {
				const timeout = 5 * time.Second
				shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				if err := cleanup(shutdownCtx); err != nil {
					slog.Error("failed to shutdown tracer", "error", err)
				}
			}
		}(wg)

		wg.Add(1)
		go func(wg *sync.WaitGroup) {
			defer wg.Done()
			server.Stop()
		}(wg)

		const timeout = 10 * time.Second
		done := make(chan struct{})
		go func() {
			defer close(done)
			wg.Wait()
		}()
		select {
		case <-done:
			if err := ps.Close(); err != nil {
				slog.Error("failed to close pubsub", "error", err)
			}
			if err := kvStore.Close(); err != nil {
				slog.Error("failed to close key-value store", "error", err)
			}
			slog.Info("shutdown safely completed")
			os.Exit(0)
		case <-time.After(timeout):
			slog.Error("shutdown timed out")
			os.Exit(1)
		}
	}
	defer stop(syscall.SIGINT)

	shutdown.AddWithParam(stop)
	shutdown.Listen(syscall.SIGINT, syscall.SIGKILL, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	return nil
}

func initTracer(cfg *config.Config) func(context.Context) error {
	exporter, err := otlptrace.New(
		context.Background(),
		otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.Metrics.OTLPEndpoint),
		),
	)
	if err != nil {
		slog.Error("failed tracing app", "error", err)
	}
	resources, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", "osu-coordinator"),
			attribute.String("library.language", "go"),
		),
	)
	if err != nil {
		slog.Error("could not set resources", "error", err)
	}

	otel.SetTracerProvider(
		sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resources),
		),
	)
	return exporter.Shutdown
}
