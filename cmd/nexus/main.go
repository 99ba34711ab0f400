// Command nexus runs the dual-endpoint HTTP/1.1 server: one cleartext
// listener, one TLS listener, both serving the same handler table and
// static file tree.
package main

import (
	"bufio"
	"flag"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/youfantan/Nexus/internal/logging"
	"github.com/youfantan/Nexus/server"
)

func main() {
	cfg, logLevel := parseConfig()
	log := logging.NewStdout(logLevel).With("main")

	registry := server.NewRegistry()

	srv, err := server.New(cfg, registry, log)
	if err != nil {
		log.Fatal("server construction failed", map[string]any{"error": err.Error()})
		return
	}

	srv.Start()
	log.Info("listening", map[string]any{"http": cfg.HTTPAddr, "https": cfg.HTTPSAddr})

	waitForExit(log)

	log.Info("shutting down", nil)
	srv.Close()
	log.Info("stopped", nil)
}

// waitForExit blocks until stdin reaches EOF or a line consisting of the
// literal token "exit" (surrounding whitespace ignored) is read.
func waitForExit(log *logging.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "exit" {
			return
		}
	}
}

func parseConfig() (server.Config, logging.Level) {
	var cfg server.Config
	var logLevelStr string

	flag.StringVar(&cfg.HTTPAddr, "http-addr", envOr("NEXUS_HTTP_ADDR", "0.0.0.0:80"), "HTTP listen address")
	flag.StringVar(&cfg.HTTPSAddr, "https-addr", envOr("NEXUS_HTTPS_ADDR", "0.0.0.0:443"), "HTTPS listen address")
	flag.StringVar(&cfg.CertFile, "cert", envOr("NEXUS_CERT", "server.crt"), "TLS certificate (PEM)")
	flag.StringVar(&cfg.KeyFile, "key", envOr("NEXUS_KEY", "server.key"), "TLS private key (PEM)")
	flag.StringVar(&cfg.StaticDir, "static", envOr("NEXUS_STATIC", "./static"), "static file root")
	flag.IntVar(&cfg.Workers, "workers", envOrInt("NEXUS_WORKERS", runtime.NumCPU()), "worker pool size (0 = synchronous)")
	flag.IntVar(&cfg.PollMs, "poll-ms", envOrInt("NEXUS_POLL_MS", 50), "multiplexer poll interval, milliseconds")
	connTimeout := flag.Int64("conn-timeout-ms", envOrInt64("NEXUS_CONN_TIMEOUT_MS", 10000), "connection lifetime limit from accept, milliseconds")
	flag.IntVar(&cfg.CacheCapacity, "cache-capacity", envOrInt("NEXUS_CACHE_CAPACITY", 0), "resource cache entry capacity (0 = default)")
	flag.StringVar(&logLevelStr, "log-level", envOr("NEXUS_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Parse()

	cfg.ConnTimeoutMs = *connTimeout
	return cfg, logging.ParseLevel(logLevelStr)
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
