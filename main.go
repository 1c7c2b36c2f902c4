// entry point of the application
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"pillowdl/internal/config"
	"pillowdl/internal/consts"
	"pillowdl/internal/downloader"
	"pillowdl/internal/entity"
	"pillowdl/internal/errs"
	httprouter "pillowdl/internal/infrastructure/delivery/http"
	"pillowdl/internal/observability"
	"pillowdl/internal/proxymgr"
	"pillowdl/internal/resolver"
	"pillowdl/internal/service"
	"pillowdl/internal/storage"
	httpserver "pillowdl/pkg/http/server"
	"pillowdl/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		slog.Error("config new", slog.Any("error", err))

		return 1
	}

	if len(os.Args) > 1 && os.Args[1] != "" {
		cfg.App.InputFile = os.Args[1]
	}

	log, err := logger.New(&logger.Options{
		AddSource: true,
		Level:     cfg.App.LogLevel,
	})
	if err != nil {
		slog.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
	}

	metrics := observability.New(prometheus.DefaultRegisterer)

	// nil when no proxies are configured
	var proxyMgr *proxymgr.Manager
	if len(cfg.Proxy.Proxies) > 0 {
		proxyMgr = proxymgr.New(log, cfg, metrics)
		proxyMgr.StartHealthChecker(ctx)

		log.InfoContext(ctx, "proxy manager initialized", slog.Int("proxy_count", len(cfg.Proxy.Proxies)))
	}

	client := downloader.NewHTTPClient(cfg, proxyMgr)
	res := resolver.New(cfg.Source.Host, cfg.Source.APIBase)
	dl := downloader.NewNative(log, cfg, client, res, proxyMgr, metrics)
	storer := storage.New(log, metrics)
	errLog := storage.NewErrorLog(log, metrics, cfg.ErrorLog.Path)

	if archive, err := errLog.Rotate(ctx, cfg.ErrorLog.RotateSize, time.Now()); err != nil {
		log.WarnContext(ctx, "rotate error log", slog.Any("error", err))
	} else if archive != "" {
		log.InfoContext(ctx, "error log rotated", slog.String("archive", archive))
	}

	if cfg.HTTP.Addr != "" {
		router := httprouter.New(log, storer, metrics, observability.Handler())

		httpSrv := httpserver.New(router, httpserver.Options{
			Addr:            cfg.HTTP.Addr,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		})

		go func() {
			if err := <-httpSrv.Notify(); err != nil {
				log.ErrorContext(ctx, "status server", slog.Any("error", err))
			}
		}()

		defer func() {
			if err := httpSrv.Shutdown(); err != nil {
				log.Error("status server shutdown", slog.Any("error", err))
			}
		}()

		log.InfoContext(ctx, "status server started", slog.String("addr", cfg.HTTP.Addr))
	}

	svc := service.New(cfg, log, dl, storer, errLog, metrics)

	summary, err := svc.Run(ctx)
	if errors.Is(err, errs.ErrNoURLs) {
		fmt.Println(consts.MsgNoURLs)

		return 0
	}

	if err != nil {
		log.ErrorContext(ctx, "run failed", slog.Any("error", err))

		return 1
	}

	printSummary(summary)

	return 0
}

func printSummary(s *entity.Summary) {
	fmt.Println()
	fmt.Println("All done!")
	fmt.Printf("Downloaded %d of %d files, %d failed.\n", s.Succeeded, s.Total, s.Failed)
	fmt.Printf("Files saved in: %s\n", s.OutputDir)
	fmt.Printf("Total runtime: %.2f seconds\n", s.Elapsed.Seconds())

	if s.ErrorsLogged {
		fmt.Printf("Errors logged to: %s\n", s.ErrorLog)
	}
}
