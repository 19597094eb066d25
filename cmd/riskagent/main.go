// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command riskagent is a thin CLI for exercising the runtime manually: run
// one reasoning turn against a seeded agent, validate a config file, or run
// the autonomous scan schedulers until interrupted. It is not a service —
// the HTTP/WebSocket gateway and dashboard are external collaborators.
//
// Usage:
//
//	riskagent validate --config config.yaml
//	riskagent reason --config config.yaml --agent onboarding --goal "review seller S-1" --input '{"sellerId":"S-1"}'
//	riskagent run --config config.yaml
//	riskagent version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	agentcore "github.com/riskforge/agentcore"
	"github.com/riskforge/agentcore/pkg/logger"
	"github.com/riskforge/agentcore/pkg/orchestrator"
	"github.com/riskforge/agentcore/pkg/runtime"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Validate ValidateCmd `cmd:"" help:"Validate a runtime config file."`
	Reason   ReasonCmd   `cmd:"" help:"Run one reasoning turn against a seeded agent."`
	Run      RunCmd      `cmd:"" help:"Start the autonomous scan schedulers until interrupted."`

	Config    string `short:"c" help:"Path to runtime config YAML." type:"path" default:"riskagent.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (text or json)." default:"text"`
}

// VersionCmd prints build version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(agentcore.GetVersion().String())
	return nil
}

// ValidateCmd loads and validates a config file without building a runtime.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := runtime.LoadConfig(cli.Config)
	if err != nil {
		return err
	}
	fmt.Printf("config %s is valid\n", cli.Config)
	fmt.Printf("  storage:   %s\n", cfg.Storage.Backend)
	fmt.Printf("  llm:       %s\n", orDash(cfg.LLM.Provider))
	fmt.Printf("  knowledge: %s\n", cfg.Knowledge.Backend)
	return nil
}

// ReasonCmd runs one ad hoc reasoning turn against a named specialized
// agent via the Coordinator, the same path the Orchestrator uses, without
// needing a running scan scheduler.
type ReasonCmd struct {
	Agent string `required:"" help:"Agent id to reason with (onboarding, policy-evolution)."`
	Goal  string `help:"Goal string passed to the reasoning turn."`
	Input string `help:"JSON object merged into the reasoning input." default:"{}"`
}

func (c *ReasonCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := bootstrap(ctx, cli)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(ctx) }()

	var input map[string]any
	if err := json.Unmarshal([]byte(c.Input), &input); err != nil {
		return fmt.Errorf("riskagent: parse --input: %w", err)
	}

	result := rt.Coordinator.DispatchParallel(ctx, []string{c.Agent}, orchestrator.Task{
		Goal:  c.Goal,
		Input: input,
	}, orchestrator.DefaultDispatchTimeout)
	if len(result) == 0 {
		return fmt.Errorf("riskagent: no result for agent %q", c.Agent)
	}

	out, err := json.MarshalIndent(result[0], "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// RunCmd starts every enabled specialized agent's autonomous scan
// scheduler and blocks until interrupted.
type RunCmd struct{}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	rt, err := bootstrap(ctx, cli)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(ctx) }()

	rt.Start(ctx)
	slog.Info("riskagent running", "config", cli.Config)
	<-ctx.Done()
	rt.Stop()
	return nil
}

func bootstrap(ctx context.Context, cli *CLI) (*runtime.Runtime, error) {
	cfg, err := runtime.LoadConfig(cli.Config)
	if err != nil {
		return nil, fmt.Errorf("riskagent: load config: %w", err)
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("riskagent: build runtime: %w", err)
	}
	if err := rt.Load(ctx); err != nil {
		return nil, fmt.Errorf("riskagent: load runtime state: %w", err)
	}
	return rt, nil
}

func orDash(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("riskagent"),
		kong.Description("Fraud & risk multi-agent reasoning runtime — manual exercise CLI."),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "riskagent: %v\n", err)
		os.Exit(1)
	}
	logger.Init(level, os.Stderr, cli.LogFormat)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
