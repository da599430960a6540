package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"tradejournal/internal/journal"
	"tradejournal/internal/mcpserver"
	"tradejournal/internal/ocr"
	"tradejournal/internal/structuring"
	"tradejournal/internal/trade"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// .env is optional; it carries API keys in the usual deployment layout
	_ = godotenv.Load()

	fs := ff.NewFlagSet("tradejournal")
	var (
		logPath     = fs.StringLong("log", "logs/trade_log.jsonl", "Append-only trade log path")
		artifactDir = fs.StringLong("output", "output", "Per-trade artifact directory")
		summaryDir  = fs.StringLong("summaries", "summaries", "Daily summary directory")
		saveMode    = fs.StringLong("mode", "all", "Save mode: log-only, log+artifact, log+aggregate, all")
		provider    = fs.StringLong("provider", "deepseek", "Structuring provider: 'deepseek', 'ollama' or 'gemini'")
		apiKey      = fs.StringLong("api-key", "", "DeepSeek API key (or set DEEPSEEK_API_KEY env var)")
		apiBase     = fs.StringLong("api-base", "", "OpenAI-compatible API base URL (or set DEEPSEEK_API_BASE env var)")
		model       = fs.StringLong("model", "", "Model name for the chosen provider")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		batch       = fs.BoolLong("batch", "Process a folder of images")
		serve       = fs.BoolLong("serve", "Run as an MCP stdio server")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("TRADEJOURNAL"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	mode, err := trade.ParseSaveMode(*saveMode)
	if err != nil {
		slog.Error("Invalid save mode", "mode", *saveMode, "valid", "log-only, log+artifact, log+aggregate, all")
		os.Exit(1)
	}

	// Initialize structuring provider based on type
	var structurer structuring.Structurer
	switch *provider {
	case "deepseek":
		key := *apiKey
		if key == "" {
			key = os.Getenv("DEEPSEEK_API_KEY")
		}
		if key == "" {
			slog.Error("DeepSeek API key is required. Set --api-key flag or DEEPSEEK_API_KEY environment variable")
			os.Exit(1)
		}
		base := *apiBase
		if base == "" {
			base = os.Getenv("DEEPSEEK_API_BASE")
		}
		slog.Info("Initializing DeepSeek structurer...", "model", *model)
		structurer, err = structuring.NewDeepSeek(key, base, *model)
		if err != nil {
			slog.Error("Failed to initialize DeepSeek", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama structurer...", "url", *ollamaURL, "model", *model)
		structurer, err = structuring.NewOllama(*ollamaURL, *model)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	case "gemini":
		key := *geminiKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		if key == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini structurer...", "model", *model)
		structurer, err = structuring.NewGemini(key, *model)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid structuring provider", "provider", *provider, "valid", "deepseek, ollama or gemini")
		os.Exit(1)
	}
	defer structurer.Close()

	sink := trade.NewFileSink(trade.Paths{
		LogPath:     *logPath,
		ArtifactDir: *artifactDir,
		SummaryDir:  *summaryDir,
	})
	service := trade.NewService(ocr.NewTesseract(), structurer, sink)
	reader := journal.NewReader(*logPath)

	if *serve {
		slog.Info("Starting MCP server", "version", version, "log", *logPath)
		srv := mcpserver.New(service, reader, mode, *logPath)
		if err := srv.ServeStdio(); err != nil {
			slog.Error("MCP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	args := fs.GetArgs()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "usage: tradejournal [flags] <image>|<folder>\n\n%s\n", ffhelp.Flags(fs))
		os.Exit(1)
	}
	target := args[0]

	info, statErr := os.Stat(target)
	isDir := statErr == nil && info.IsDir()

	if *batch || isDir {
		result, err := service.ProcessFolder(target, mode)
		if err != nil {
			slog.Error("Batch processing failed", "folder", target, "error", err)
			os.Exit(1)
		}
		printJSON(result)
		return
	}

	summary, err := service.ProcessImage(target, mode)
	if err != nil {
		slog.Error("Processing failed", "image", target, "error", err)
		os.Exit(1)
	}
	printJSON(summary)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		slog.Error("Failed to encode result", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
