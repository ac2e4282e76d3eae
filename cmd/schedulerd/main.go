// Command schedulerd runs the persistent per-tenant job scheduler as a
// standalone daemon: load config, build the executor/notifier backends it
// selects, start the scheduler, and drain on signal.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"schedulerd/internal/config"
	"schedulerd/internal/executor"
	"schedulerd/internal/logging"
	"schedulerd/internal/notify"
	"schedulerd/internal/scheduler"
	"schedulerd/internal/tools"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	log := logging.New("info", false)

	mgr, err := config.NewManager(*configPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	cfg := mgr.Get()
	log = logging.New(cfg.Logging.Level, cfg.Logging.Pretty)

	exec, err := buildExecutor(cfg.Executor)
	if err != nil {
		log.Fatal().Err(err).Msg("build executor")
	}

	notifier, closeNotifier, err := buildNotifier(cfg.Notify)
	if err != nil {
		log.Fatal().Err(err).Msg("build notifier")
	}
	if closeNotifier != nil {
		defer closeNotifier()
	}

	svc := scheduler.New(scheduler.Options{
		BotName:         cfg.BotName,
		StorePath:       cfg.StorePath,
		DefaultTimezone: cfg.DefaultTimezone,
		MaxJobsPerChat:  cfg.MaxJobsPerChat,
		MaxRunMs:        cfg.MaxRunMs,
		DefaultPolicy: scheduler.Policy{
			MaxLatenessMs:  cfg.DefaultPolicy.MaxLatenessMs,
			RetryMax:       cfg.DefaultPolicy.RetryMax,
			RetryBackoffMs: cfg.DefaultPolicy.RetryBackoffMs,
			DeleteAfterRun: cfg.DefaultPolicy.DeleteAfterRun,
		},
		Log:      log,
		Executor: exec,
		Notifier: notifier,
	})

	if *cfg.Enabled {
		if err := svc.Start(); err != nil {
			log.Fatal().Err(err).Msg("start scheduler")
		}
		log.Info().Str("store", cfg.StorePath).Msg("schedulerd started")
	} else {
		log.Info().Msg("scheduler disabled by config; not started")
	}

	// Registered here for whatever ingress (a chat transport, an RPC
	// surface) wires it to an agent loop; schedulerd itself has none.
	_ = tools.NewRegistry(svc)

	reloads := mgr.Subscribe(1)
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	go func() {
		if err := mgr.Watch(watchCtx); err != nil {
			log.Warn().Err(err).Msg("config watch exited")
		}
	}()
	go func() {
		for reloaded := range reloads {
			svc.SetDefaultPolicy(scheduler.Policy{
				MaxLatenessMs:  reloaded.DefaultPolicy.MaxLatenessMs,
				RetryMax:       reloaded.DefaultPolicy.RetryMax,
				RetryBackoffMs: reloaded.DefaultPolicy.RetryBackoffMs,
				DeleteAfterRun: reloaded.DefaultPolicy.DeleteAfterRun,
			})
			svc.SetMaxJobsPerChat(reloaded.MaxJobsPerChat)
			log.Info().Msg("applied reloaded config to scheduler defaults")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancelWatch()
	svc.Stop()
}

func buildExecutor(cfg config.ExecutorConfig) (scheduler.Executor, error) {
	switch cfg.Backend {
	case "openai":
		return executor.OpenAI(executor.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	default:
		return executor.Anthropic(executor.AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	}
}

func buildNotifier(cfg config.NotifyConfig) (scheduler.Notifier, func(), error) {
	switch cfg.Backend {
	case "redis":
		n, err := notify.NewRedisNotifier(cfg.Addr, cfg.Channel)
		if err != nil {
			return nil, nil, err
		}
		return n, func() { _ = n.Close() }, nil
	default:
		return nil, nil, nil
	}
}
