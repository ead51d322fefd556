// Command netagent runs the network operations agent.
//
// Usage:
//
//	netagent serve --config config.yaml
//	netagent ask --config config.yaml "R1: is eth0 up?"
//	netagent validate --config config.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/automateyournetwork/netagent/pkg/config"
	"github.com/automateyournetwork/netagent/pkg/logger"
	"github.com/automateyournetwork/netagent/pkg/router"
	"github.com/automateyournetwork/netagent/pkg/runtime"
	"github.com/automateyournetwork/netagent/pkg/server"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP server."`
	Ask      AskCmd      `cmd:"" help:"Resolve one request from the command line."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration and inventory."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"config.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (text, json)." default:"text"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("netagent version %s\n", version)
	return nil
}

// ServeCmd runs the HTTP server until interrupted.
type ServeCmd struct {
	Port int `help:"Port to listen on (overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, rt.Router())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutting down")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
	}()

	return srv.Start()
}

// AskCmd resolves a single request and prints the answer.
type AskCmd struct {
	Request []string `arg:"" help:"The request text."`
	Image   []string `help:"Image files to attach." type:"existingfile"`
}

func (c *AskCmd) Run(cli *CLI) error {
	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return err
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		return err
	}

	var attachments []router.Attachment
	for _, path := range c.Image {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read image %s: %w", path, err)
		}
		attachments = append(attachments, router.Attachment{
			Name:      path,
			MediaType: mediaTypeFor(path),
			Data:      data,
		})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	request := strings.Join(c.Request, " ")

	result, err := rt.Router().Handle(ctx, request, attachments...)
	if err != nil && result == nil {
		return err
	}

	if result.Status == router.StatusError {
		fmt.Fprintf(os.Stderr, "error: %s\n", result.Error)
		if result.Answer != "" {
			fmt.Println(result.Answer)
		}
		os.Exit(1)
	}
	fmt.Println(result.Answer)
	return nil
}

// ValidateCmd checks that the configuration and inventory load cleanly
// and that every agent's tool subset and device reference resolve.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return err
	}

	if _, err := runtime.New(cfg); err != nil {
		return err
	}

	fmt.Printf("%s is valid: %d agents over inventory %s\n", cli.Config, len(cfg.Agents), cfg.Inventory)
	return nil
}

func mediaTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("netagent"),
		kong.Description("Natural-language operations over network devices, CMDB, and ticketing."),
		kong.UsageOnError(),
	)

	closer, err := logger.Init(logger.Options{
		Level:  cli.LogLevel,
		Format: cli.LogFormat,
		File:   cli.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
