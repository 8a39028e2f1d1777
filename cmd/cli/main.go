package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"jarcode/internal/cli/command"
	"jarcode/internal/cli/config"
	httpclient "jarcode/internal/cli/http"
	"jarcode/internal/cli/repl"
	"jarcode/internal/cli/state"
)

const defaultConfigPath = "configs/cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override HTTP timeout (e.g. 10s)")
	token := flag.String("token", "", "Override session token")
	statePath := flag.String("state", "", "Override token state path")
	pretty := flag.Bool("pretty", false, "Pretty print JSON response")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// The CLI is usable with defaults; only a present-but-broken config
		// file is fatal.
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
			return
		}
		cfg, _ = config.Load("")
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *statePath != "" {
		cfg.TokenStatePath = *statePath
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}

	tokenState, err := state.Load(cfg.TokenStatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load token state failed: %v\n", err)
		return
	}
	if *token != "" {
		tokenState.Token = *token
	}

	client := httpclient.New(cfg.BaseURL, cfg.Timeout, func() string {
		return tokenState.Token
	})

	watchURL, err := repl.WatchURL(cfg.BaseURL, cfg.WatchPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "derive watch url failed: %v\n", err)
		return
	}

	commands := command.Registry()
	session, err := repl.New(client, commands, &tokenState, cfg.TokenStatePath,
		cfg.PrettyJSON != nil && *cfg.PrettyJSON, watchURL, cfg.WatchTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start repl failed: %v\n", err)
		return
	}
	session.Run(context.Background())
}
