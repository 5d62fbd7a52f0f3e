package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/medpipe/medpipe/internal/api"
	"github.com/medpipe/medpipe/internal/catalog"
	"github.com/medpipe/medpipe/internal/genai"
	"github.com/medpipe/medpipe/internal/knowledge"
	"github.com/medpipe/medpipe/internal/lockfile"
	"github.com/medpipe/medpipe/internal/models"
	"github.com/medpipe/medpipe/internal/prompts"
	"github.com/medpipe/medpipe/internal/session"
	"github.com/medpipe/medpipe/internal/store"
	"github.com/medpipe/medpipe/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for MedPipe state data
	DefaultStateDir = "/var/lib/medpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "medpipe.db"
	// DefaultAPIAddr is the default HTTP listen address in serve mode
	DefaultAPIAddr = ":8080"
)

// Exit keywords that close an interactive console conversation.
var exitKeywords = []string{"退出", "结束", "quit", "exit"}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	cats, err := loadCatalogs(flags)
	if err != nil {
		slog.Error("Failed to load field catalogs", "error", err)
		os.Exit(1)
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	kb := knowledge.NewBase(st)
	if err := ingestKnowledge(kb, *flags.knowledgeCSV); err != nil {
		slog.Error("Failed to ingest knowledge CSV", "error", err, "path", *flags.knowledgeCSV)
		os.Exit(1)
	}

	generator, detector := buildGenerator(flags, config)

	sessions := session.NewManager(config.Dialogue, cats, kb, generator, st)

	if *flags.serve {
		if err := runServer(flags, sessions, detector); err != nil {
			slog.Error("MedPipe server failed", "error", err)
			os.Exit(1)
		}
		return
	}
	if err := runConsole(flags, sessions); err != nil {
		slog.Error("MedPipe console failed", "error", err)
		os.Exit(1)
	}
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	OpenAIBase  string
	OpenAIModel string
	APIAddr     string
	Mappings    string
	Knowledge   string
	Dialogue    models.Config
}

// Flags holds command line flag values
type Flags struct {
	serve        *bool
	stateDir     *string
	dbDSN        *string
	openaiKey    *string
	apiAddr      *string
	mappings     *string
	knowledgeCSV *string
	username     *string
}

// initializeLogger sets up structured logging; MEDPIPE_DEBUG enables debug level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("MEDPIPE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("MEDPIPE_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBase:  os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel: os.Getenv("OPENAI_MODEL"),
		APIAddr:     os.Getenv("API_ADDR"),
		Mappings:    os.Getenv("MEDPIPE_MAPPINGS"),
		Knowledge:   os.Getenv("MEDPIPE_KNOWLEDGE_CSV"),
		Dialogue: models.Config{
			MaxTurns:       util.ParseIntEnv("MEDPIPE_MAX_TURNS", models.DefaultMaxTurns),
			TimeoutSeconds: util.ParseIntEnv("MEDPIPE_TIMEOUT_SECONDS", models.DefaultTimeoutSeconds),
			MinConfidence:  util.ParseFloatEnv("MEDPIPE_MIN_CONFIDENCE", models.DefaultMinConfidence),
		},
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No MEDPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"MEDPIPE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"MEDPIPE_KNOWLEDGE_CSV", config.Knowledge,
		"max_turns", config.Dialogue.MaxTurns,
		"timeout_seconds", config.Dialogue.TimeoutSeconds,
		"min_confidence", config.Dialogue.MinConfidence)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		serve:        flag.Bool("serve", false, "run the HTTP API server instead of the interactive console"),
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for MedPipe data (overrides $MEDPIPE_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN, a file path or postgres:// URL (overrides $DATABASE_URL)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		mappings:     flag.String("mappings", config.Mappings, "path to a field mapping JSON file (overrides $MEDPIPE_MAPPINGS, defaults to the embedded catalogs)"),
		knowledgeCSV: flag.String("knowledge-csv", config.Knowledge, "path to a department Q&A CSV to ingest (overrides $MEDPIPE_KNOWLEDGE_CSV)"),
		username:     flag.String("username", "", "username recorded on console sessions"),
	}
	flag.Parse()

	// Follow a moved state directory when the DSN was derived from it.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated db-dsn based on state directory", "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"serve", *flags.serve,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

	return flags
}

// loadCatalogs loads the embedded field catalogs or an override file.
func loadCatalogs(flags Flags) (*catalog.Set, error) {
	if *flags.mappings != "" {
		slog.Info("Loading field catalogs from file", "path", *flags.mappings)
		return catalog.LoadFile(*flags.mappings)
	}
	return catalog.Load()
}

// buildStore selects the storage backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// ingestKnowledge loads a Q&A CSV into the knowledge base on first run. An
// already-populated index is left untouched.
func ingestKnowledge(kb *knowledge.Base, csvPath string) error {
	if csvPath == "" {
		return nil
	}
	n, err := kb.Len(context.Background())
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("Knowledge base already populated, skipping CSV ingestion", "snippets", n)
		return nil
	}
	snippets, err := knowledge.LoadCSV(csvPath)
	if err != nil {
		return err
	}
	return kb.AddSnippets(snippets)
}

// buildGenerator initializes the generation client. Without an API key the
// service runs collection-only: generation states answer with an error.
func buildGenerator(flags Flags, config Config) (genai.ClientInterface, api.IntentDetector) {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	if config.OpenAIBase != "" {
		opts = append(opts, genai.WithBaseURL(config.OpenAIBase))
	}
	if config.OpenAIModel != "" {
		opts = append(opts, genai.WithModel(config.OpenAIModel))
	}
	opts = append(opts, genai.WithMinConfidence(config.Dialogue.MinConfidence))

	client, err := genai.NewClient(opts...)
	if err != nil {
		if errors.Is(err, genai.ErrAPIKeyNotSet) {
			slog.Warn("OPENAI_API_KEY not set, generation states will be unavailable")
		} else {
			slog.Error("Failed to initialize generation client", "error", err)
		}
		return nil, nil
	}
	return client, client
}

// runServer runs the HTTP API with a state directory lock and graceful shutdown.
func runServer(flags Flags, sessions *session.Manager, detector api.IntentDetector) error {
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	server := &http.Server{
		Addr:    *flags.apiAddr,
		Handler: api.NewServer(sessions, detector).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("MedPipe API listening", "addr", *flags.apiAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("Shutting down on signal", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// runConsole runs one interactive conversation on stdin/stdout.
func runConsole(flags Flags, sessions *session.Manager) error {
	sess, err := sessions.Create(*flags.username)
	if err != nil {
		return err
	}
	fmt.Println(prompts.Greeting)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if isExitKeyword(input) {
			fmt.Println(prompts.ClosureMessage)
			break
		}

		reply, snap, err := sessions.Message(context.Background(), sess.ID, input)
		if err != nil {
			return err
		}
		fmt.Println(reply)
		if snap.Context.State.Terminal() {
			break
		}
	}
	return scanner.Err()
}

func isExitKeyword(input string) bool {
	lowered := strings.ToLower(input)
	for _, kw := range exitKeywords {
		if lowered == kw {
			return true
		}
	}
	return false
}
