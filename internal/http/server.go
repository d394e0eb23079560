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

package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/USA-RedDragon/DMRHub/internal/chat"
	"github.com/USA-RedDragon/DMRHub/internal/chat/pipeline"
	"github.com/USA-RedDragon/DMRHub/internal/config"
	"github.com/USA-RedDragon/DMRHub/internal/hub"
	"github.com/USA-RedDragon/DMRHub/internal/http/api"
	"github.com/USA-RedDragon/DMRHub/internal/http/api/middleware"
	internalratelimit "github.com/USA-RedDragon/DMRHub/internal/http/ratelimit"
	"github.com/USA-RedDragon/DMRHub/internal/kv"
	ginratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	ginpprof "github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Server struct {
	*http.Server
	shutdownChannel chan bool
}

const defTimeout = 10 * time.Second
const debugWriteTimeout = 60 * time.Second
const rateLimitRate = time.Second
const rateLimitLimit = 10

// MakeServer builds the HTTP server: the chat send/read surface and every
// registered hub's negotiate/connect WebSocket endpoints, all behind the
// rate limiter and CORS/tracing middleware.
func MakeServer(cfg *config.Config, db *gorm.DB, kvStore kv.KV, hubs map[string]*hub.Hub, chatSvc *chat.Service, chatPipeline *pipeline.Pipeline, ready *atomic.Bool) Server {
	if cfg.HTTP.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := CreateRouter(cfg, db, kvStore, hubs, chatSvc, chatPipeline, ready)

	writeTimeout := defTimeout
	if cfg.HTTP.Debug {
		writeTimeout = debugWriteTimeout
	}

	slog.Info("HTTP server listening", "addr", cfg.HTTP.ListenAddr, "port", cfg.HTTP.Port)
	s := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.ListenAddr, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  defTimeout,
		WriteTimeout: writeTimeout,
	}
	s.SetKeepAlivesEnabled(false)

	return Server{
		s,
		make(chan bool),
	}
}

func addMiddleware(r *gin.Engine, cfg *config.Config, db *gorm.DB, ready *atomic.Bool) {
	if cfg.HTTP.Debug {
		ginpprof.Register(r)
	}

	if cfg.Metrics.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware("api"))
		r.Use(middleware.TracingProvider(cfg))
	}

	r.Use(middleware.ConfigProvider(cfg))
	r.Use(middleware.DatabaseProvider(cfg, db))
	r.Use(middleware.ReadinessProvider(ready))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = true
	corsConfig.AllowOrigins = cfg.HTTP.CORSHosts
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))
}

// CreateRouter wires up every middleware and route group. Unlike the
// gameplay hubs, there is no bundled web client to serve: this is an API
// and WebSocket coordination server only.
func CreateRouter(cfg *config.Config, db *gorm.DB, kvStore kv.KV, hubs map[string]*hub.Hub, chatSvc *chat.Service, chatPipeline *pipeline.Pipeline, ready *atomic.Bool) *gin.Engine {
	if cfg.HTTP.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	if err := r.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		slog.Error("failed setting trusted proxies", "error", err)
	}

	addMiddleware(r, cfg, db, ready)

	r.GET("/healthz", func(c *gin.Context) {
		if ready.Load() {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
	})

	limiterStore := internalratelimit.NewKVStore(&internalratelimit.KVOptions{
		KV:    kvStore,
		Rate:  rateLimitRate,
		Limit: rateLimitLimit,
	})
	ratelimitMW := ginratelimit.RateLimiter(limiterStore, &ginratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ginratelimit.Info) {
			c.String(http.StatusTooManyRequests, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})

	api.ApplyRoutes(r, cfg, ratelimitMW, hubs, chatSvc, chatPipeline)

	return r
}

func (s *Server) Stop() {
	slog.Info("stopping HTTP server")
	const timeout = 5 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}
	<-s.shutdownChannel
}

var ErrClosed = errors.New("server closed")
var ErrFailed = errors.New("failed to start server")

func (s *Server) Start() error {
	g := new(errgroup.Group)
	g.Go(func() error {
		err := s.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				s.shutdownChannel <- true
				return ErrClosed
			default:
				slog.Error("failed to start HTTP server", "error", err)
				return ErrFailed
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err //nolint:golint,wrapcheck
	}
	return nil
}
