package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gaspardpetit/agentbridge/internal/config"
	"github.com/gaspardpetit/agentbridge/internal/demoagent"
	"github.com/gaspardpetit/agentbridge/internal/logx"
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
	var cfg config.AgentConfig
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
	flag.Parse()
	if *showVersion {
		fmt.Printf("agentbridge-agent version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}
	logx.Configure(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent := demoagent.New(cfg.RPCTimeout)
	addr, done, err := demoagent.ServeUntilContext(ctx, fmt.Sprintf(":%d", cfg.Port), agent.Handler(cfg.Path))
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("listen")
	}
	logx.Log.Info().Str("addr", addr).Str("path", cfg.Path).Dur("rpc_timeout", cfg.RPCTimeout).Msg("agent listening")
	<-ctx.Done()
	logx.Log.Info().Msg("agent stopping")
	<-done
	logx.Log.Info().Msg("agent stopped")
}
