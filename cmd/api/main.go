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

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"go-kv-commerce/internal/core/config"
	"go-kv-commerce/internal/core/kv"
	"go-kv-commerce/internal/core/logger"
	"go-kv-commerce/internal/core/server"
	"go-kv-commerce/internal/perf"
	"go-kv-commerce/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	var log *zap.Logger
	var cleanup func()
	if cfg.Log.File != "" {
		log, cleanup = logger.NewWithRotate(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File, 100, 7, 30, true)
	} else {
		log, cleanup = logger.New(cfg.Log.Level, cfg.Log.JSON)
	}
	defer cleanup()
	undo := logger.RedirectStdLog(log, zapcore.InfoLevel)
	defer undo()

	// 存储网关：懒连接，首个请求时才真正拨号
	gw := kv.NewGateway(kv.GatewayOpts{
		Backend: cfg.Store.Backend,
		Redis: kv.RedisOpts{
			Addr:     cfg.Store.Addr,
			Password: cfg.Store.Password,
			DB:       cfg.Store.DB,
		},
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BaseDelay:    time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		ProbeTimeout: time.Duration(cfg.Retry.ProbeTimeoutSec) * time.Second,
	}, log)
	defer gw.Reset()

	mon := perf.New(log)

	// 运维端点（/health /metrics /stats）
	r := router.NewOpsEngine(log, gw, mon)

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)
	if errLog, err := logger.ToStdLogger(log, zapcore.ErrorLevel); err == nil {
		srv.ErrorLog = errLog
	}

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("ops server starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("metrics", baseURL+"/metrics"),
	)

	go func() {
		if err := server.StartHTTP(srv, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ops server start FAILED", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("ops server stopped gracefully")
}
