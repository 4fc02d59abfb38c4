package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/lane-overlay-mcp/internal/config"
	"github.com/ironsheep/lane-overlay-mcp/internal/imaging"
	"github.com/ironsheep/lane-overlay-mcp/internal/logger"
	"github.com/ironsheep/lane-overlay-mcp/internal/pipeline"
	"github.com/ironsheep/lane-overlay-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("lane-overlay-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	// A missing .env is fine; variables may come from the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	// Logging goes to stderr (stdout is for MCP protocol)
	log := logger.Setup(logger.OptionsFromEnv())

	if len(os.Args) > 1 && os.Args[1] == "process" {
		if err := runProcess(os.Args[2:]); err != nil {
			log.WithError(err).Fatal("processing failed")
		}
		return
	}

	log.WithFields(logrus.Fields{
		"version": Version,
		"built":   BuildTime,
		"commit":  GitCommit,
	}).Debug("Lane overlay MCP server starting")

	cfg, err := config.FromEnv()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	srv, err := server.NewWithConfig(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to create server")
	}
	if err := srv.Run(); err != nil {
		log.WithError(err).Fatal("Server error")
	}
}

func printHelp() {
	fmt.Println("lane-overlay-mcp - MCP server for lane detection on road frames")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lane-overlay-mcp [options]                         Run the MCP server on stdin/stdout")
	fmt.Println("  lane-overlay-mcp process [-config f] -o dir in...  Annotate frame files")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (also read from .env):")
	fmt.Println("  LANE_MCP_CONFIG=path.json    Tuning file")
	fmt.Println("  LANE_MCP_LOG_LEVEL=debug     Log level (debug, info, warn, error)")
	fmt.Println("  LANE_MCP_LOG_FORMAT=json     Log format (text, json)")
	fmt.Println("  LANE_MCP_LOG_FILE=path       Also write logs to a rotating file")
	fmt.Println()
	fmt.Println("The server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}

// runProcess annotates each input frame and writes it under the output
// directory with the same base name.
func runProcess(args []string) error {
	fset := flag.NewFlagSet("process", flag.ContinueOnError)
	outDir := fset.String("o", "", "output directory (required)")
	cfgPath := fset.String("config", "", "tuning file (overrides "+config.EnvConfigPath+")")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if *outDir == "" || fset.NArg() == 0 {
		return errors.New("usage: process [-config file] -o dir frame...")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	inputs := fset.Args()
	cache := imaging.NewFrameCache()
	frames := make([]image.Image, len(inputs))
	for i, path := range inputs {
		img, err := cache.Load(path)
		if err != nil {
			return err
		}
		frames[i] = img
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outputs, err := p.ProcessFrames(ctx, frames)
	if err != nil {
		return err
	}

	for i, img := range outputs {
		dst := filepath.Join(*outDir, filepath.Base(inputs[i]))
		if err := imaging.SaveFrame(img, dst); err != nil {
			return err
		}
		logger.WithFields(logger.Fields{"in": inputs[i], "out": dst}).Info("frame annotated")
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FromEnv()
}
