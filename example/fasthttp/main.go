// FILE: example/fasthttp/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lixenwraith/seglog"
	"github.com/lixenwraith/seglog/compat"
	"github.com/lixenwraith/seglog/upload/httpstore"
	"github.com/valyala/fasthttp"
)

func main() {
	// Create and configure logger, archives are shipped to a collector every 15 minutes
	logger, err := seglog.NewBuilder().
		Name("fasthttp-api").
		Override(
			"log_dir=/var/log/fasthttp",
			"archive_dir=/var/log/fasthttp/archive",
			"write_to_file=true",
			"file_levels=warn,error,fatal",
			"segment_width_hours=1",
			"retention_bytes=268435456",
		).
		Storage(httpstore.New("http://127.0.0.1:8081/ingest")).
		Build()
	if err != nil {
		panic(err)
	}
	defer logger.Shutdown()

	// Create fasthttp adapter with custom level detection
	fasthttpAdapter := compat.NewFastHTTPAdapter(
		logger,
		compat.WithDefaultLevel(seglog.LevelInfo),
		compat.WithLevelDetector(customLevelDetector),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trigger := seglog.NewUploadTrigger(seglog.DefaultRegistry(), seglog.NewTimeTicker(seglog.DefaultUploadInterval), 2)
	go trigger.Run(ctx)

	// Retention runs alongside uploads
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if evicted, err := logger.CheckAndEvict(); err != nil {
					logger.Warn("retention check failed", err)
				} else if evicted {
					logger.Warn("log directory evicted")
				}
			}
		}
	}()

	// Configure fasthttp server
	server := &fasthttp.Server{
		Handler: requestHandler(logger.Tag("http")),
		Logger:  fasthttpAdapter,

		// Other server settings
		Name:              "MyServer",
		Concurrency:       fasthttp.DefaultConcurrency,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		TCPKeepalive:      true,
		ReduceMemoryUsage: true,
	}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown()
	}()

	fmt.Println("Starting server on :8080")
	if err := server.ListenAndServe(":8080"); err != nil {
		logger.Fatal("server stopped", err)
	}
}

func requestHandler(log *seglog.Entry) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		ctx.SetContentType("text/plain")
		fmt.Fprintf(ctx, "Hello, world! Path: %s\n", ctx.Path())
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			log.Warn("slow request", string(ctx.Path()), elapsed)
		}
	}
}

func customLevelDetector(msg string) (seglog.Level, bool) {
	// Can inspect specific fasthttp message patterns
	if strings.Contains(msg, "connection cannot be served") {
		return seglog.LevelWarn, true
	}
	if strings.Contains(msg, "error when serving connection") {
		return seglog.LevelError, true
	}

	// Use default detection
	return compat.DetectLogLevel(msg)
}
