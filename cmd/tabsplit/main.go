package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/tabsplit/tabsplit/internal/bill"
	"github.com/tabsplit/tabsplit/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("tabsplit")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "tabsplit.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./images", "Receipt image directory path")
		extractorType = fs.StringLong("extractor", "auto", "Extractor type: 'gemini', 'ollama', 'ocr', or 'auto'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("TABSPLIT"),
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

	// Initialize database
	slog.Info("Initializing database...")
	db, err := bill.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	extractor, err := buildExtractor(*extractorType, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel)
	if err != nil {
		slog.Error("Failed to initialize extractor", "type", *extractorType, "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := bill.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service
	billService := bill.NewService(db, extractor, store)

	// Initialize server
	basicAuth := bill.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := bill.NewServer(billService, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// buildExtractor wires up the requested extraction backend. "auto"
// prefers Gemini with local OCR as fallback, and degrades to OCR alone
// when no API key is configured.
func buildExtractor(extractorType, geminiKey, geminiModel, ollamaURL, ollamaModel string) (scanning.Extractor, error) {
	// Get Gemini API key from flag or environment
	apiKey := geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	switch extractorType {
	case "gemini":
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini extractor...", "model", geminiModel)
		return scanning.NewGemini(apiKey, geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama extractor...", "url", ollamaURL, "model", ollamaModel)
		return scanning.NewOllama(ollamaURL, ollamaModel)
	case "ocr":
		slog.Info("Initializing local OCR extractor...")
		return scanning.NewLocalOCR(nil), nil
	case "auto":
		if apiKey == "" {
			slog.Info("No Gemini API key configured, using local OCR only")
			return scanning.NewLocalOCR(nil), nil
		}
		slog.Info("Initializing Gemini extractor with local OCR fallback...", "model", geminiModel)
		gemini, err := scanning.NewGemini(apiKey, geminiModel)
		if err != nil {
			return nil, err
		}
		return scanning.NewFallback(gemini, scanning.NewLocalOCR(nil)), nil
	default:
		return nil, fmt.Errorf("invalid extractor type %q: valid types are gemini, ollama, ocr, auto", extractorType)
	}
}
