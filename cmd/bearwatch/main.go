package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog/log"

	"github.com/bearwatch/bearwatch-go/internal/config"
	"github.com/bearwatch/bearwatch-go/internal/utils/logger"
	"github.com/bearwatch/bearwatch-go/pkg/bearwatch"
)

func main() {
	logger.Init()

	if len(os.Args) < 3 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}

	client, err := bearwatch.New(&bearwatch.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init bearwatch client")
	}
	defer client.Close()

	ctx := context.Background()
	command, jobID := os.Args[1], os.Args[2]

	switch command {
	case "ping":
		resp, err := client.Ping(ctx, jobID, nil)
		exitOn(err)
		log.Info().Str("run_id", resp.RunID).Str("status", string(resp.Status)).Msg("heartbeat accepted")
	case "complete":
		resp, err := client.Complete(ctx, jobID, nil)
		exitOn(err)
		log.Info().Str("run_id", resp.RunID).Msg("completion accepted")
	case "fail":
		if len(os.Args) < 4 {
			usage()
		}
		resp, err := client.Fail(ctx, jobID, os.Args[3])
		exitOn(err)
		log.Info().Str("run_id", resp.RunID).Msg("failure accepted")
	case "run":
		if len(os.Args) < 4 {
			usage()
		}
		runWrapped(ctx, client, jobID, os.Args[3:])
	default:
		usage()
	}
}

// runWrapped reports RUNNING, executes the command under Wrap, and lets
// Wrap report the outcome. The command's own failure decides the exit
// code; heartbeat delivery problems never do.
func runWrapped(ctx context.Context, client *bearwatch.Client, jobID string, argv []string) {
	if _, err := client.Ping(ctx, jobID, &bearwatch.PingOptions{Status: bearwatch.StatusRunning}); err != nil {
		log.Warn().Err(err).Msg("running ping failed; continuing with the command")
	}
	err := client.Wrap(ctx, jobID, nil, func() error {
		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	})
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func exitOn(err error) {
	if err != nil {
		log.Error().Err(err).Msg("heartbeat failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: bearwatch <ping|complete|fail|run> <job-id> [message|command...]")
	os.Exit(2)
}
