package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gaspardpetit/agentbridge/internal/bridge"
	"github.com/gaspardpetit/agentbridge/internal/config"
	"github.com/gaspardpetit/agentbridge/internal/inflight"
	"github.com/gaspardpetit/agentbridge/internal/logx"
	"github.com/gaspardpetit/agentbridge/internal/mcptools"
	"github.com/gaspardpetit/agentbridge/internal/metrics"
	"github.com/gaspardpetit/agentbridge/internal/secret"
	"github.com/gaspardpetit/agentbridge/internal/server"
	"github.com/gaspardpetit/agentbridge/internal/serverstate"
	"github.com/gaspardpetit/agentbridge/internal/textfn"
	"github.com/gaspardpetit/agentbridge/internal/tools"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	if err := config.LoadDotEnv(""); err != nil {
		logx.Log.Fatal().Err(err).Msg("load .env")
	}
	var cfg config.ServerConfig
	// defaults < file < env < args
	cfg.SetDefaults()
	cfg.ApplyEnv()
	if p, ok := config.ConfigFileFromArgs(os.Args[1:]); ok {
		cfg.ConfigFile = p
	}
	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	cfg.ApplyEnv()
	cfg.BindFlagsFromCurrent(nil)
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "agentbridge version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("agentbridge version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}
	if err := cfg.Validate(); err != nil {
		logx.Log.Fatal().Err(err).Msg("invalid configuration")
	}

	logx.Setup(cfg.LogLevel, cfg.LogFormat)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)
	metrics.SetServerBuildInfo(version, buildSHA, buildDate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.RedisAddr != "" {
		rs, err := serverstate.NewRedisStore(ctx, cfg.RedisAddr, "")
		if err != nil {
			logx.Log.Fatal().Err(err).Str("addr", secret.MaskURL(cfg.RedisAddr)).Msg("connect redis")
		}
		defer rs.Close()
		serverstate.UseStore(rs)
		logx.Log.Info().Str("addr", secret.MaskURL(cfg.RedisAddr)).Msg("using redis state store")
	}

	set, src, err := buildTools(ctx, cfg)
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("load tools")
	}
	if src != nil {
		defer src.Close()
	}
	logx.Log.Info().Strs("tools", set.Names()).Msg("tools registered")

	b := bridge.New(bridge.Config{
		AgentURL:  cfg.AgentURL,
		Timeout:   cfg.TurnTimeout,
		ReadLimit: cfg.MaxMessageBytes,
	})
	counter := &inflight.Counter{}
	handler := server.New(cfg, server.Deps{
		Turns:    b,
		Tools:    func() *tools.Set { return set },
		Inflight: counter,
		Registry: reg,
	})
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: handler}
	var metricsSrv *http.Server
	if !server.ServesMetrics(cfg) {
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: server.MetricsHandler(reg)}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if serverstate.IsDraining() || cfg.DrainTimeout == 0 {
				logx.Log.Warn().Msg("termination requested")
				cancel()
				return
			}
			serverstate.StartDrain()
			waitCtx, stop := ctx, context.CancelFunc(func() {})
			if cfg.DrainTimeout > 0 {
				waitCtx, stop = context.WithTimeout(ctx, cfg.DrainTimeout)
			}
			logx.Log.Info().Int64("inflight", counter.Load()).Dur("timeout", cfg.DrainTimeout).Msg("draining; send SIGTERM again to terminate immediately")
			go func() {
				defer stop()
				if counter.WaitForZero(waitCtx) {
					logx.Log.Info().Msg("drain complete; terminating")
				} else {
					logx.Log.Warn().Int64("inflight", counter.Load()).Msg("drain timeout exceeded; terminating")
				}
				cancel()
			}()
		}
	}()
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			logx.Log.Error().Err(err).Msg("server shutdown")
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(context.Background()); err != nil {
				logx.Log.Error().Err(err).Msg("metrics server shutdown")
			}
		}
	}()

	if metricsSrv != nil {
		go func() {
			logx.Log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server starting")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logx.Log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}
	serverstate.SetState(serverstate.StatusReady)
	logx.Log.Info().Int("port", cfg.Port).Str("agent_url", secret.MaskURL(cfg.AgentURL)).Dur("turn_timeout", cfg.TurnTimeout).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logx.Log.Fatal().Err(err).Msg("server error")
	}
}

// buildTools assembles the registration set: the built-in string tools first,
// then whatever the configured MCP server exposes.
func buildTools(ctx context.Context, cfg config.ServerConfig) (*tools.Set, *mcptools.Source, error) {
	var base []tools.Tool
	if cfg.BuiltinTools {
		base = textfn.Tools()
	}
	set, err := tools.NewSet(base...)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MCPToolsURL == "" {
		return set, nil, nil
	}
	src, imported, err := mcptools.Load(ctx, mcptools.Config{
		URL:    cfg.MCPToolsURL,
		Token:  cfg.MCPToolsToken,
		Prefix: cfg.MCPToolsPrefix,
	})
	if err != nil {
		return nil, nil, err
	}
	set, err = set.With(imported...)
	if err != nil {
		_ = src.Close()
		return nil, nil, err
	}
	return set, src, nil
}
