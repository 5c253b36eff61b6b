// ABOUTME: Entry point for the quotedesk chatbot server
// ABOUTME: Serves the visitor chat, lead capture API, and admin dashboard

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/quotedesk/quotedesk/internal/config"
	"github.com/quotedesk/quotedesk/internal/gateway"
	"github.com/quotedesk/quotedesk/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                   _           _           _
  __ _ _   _  ___ | |_ ___  __| | ___  ___| | __
 / _' | | | |/ _ \| __/ _ \/ _' |/ _ \/ __| |/ /
| (_| | |_| | (_) | ||  __/ (_| |  __/\__ \   <
 \__, |\__,_|\___/ \__\___|\__,_|\___||___/_|\_\
    |_|
`

// getConfigPath returns the path to the quotedesk config file.
// Priority: QUOTEDESK_CONFIG env var > XDG_CONFIG_HOME/quotedesk/quotedesk.yaml > ~/.config/quotedesk/quotedesk.yaml
func getConfigPath() string {
	if envPath := os.Getenv("QUOTEDESK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "quotedesk.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "quotedesk", "quotedesk.yaml")
}

// getDataPath returns the path to the quotedesk data directory.
// Priority: XDG_DATA_HOME/quotedesk > ~/.local/share/quotedesk
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "quotedesk")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: quotedesk <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                      Start the chatbot server")
		fmt.Println("  init                       Create a new config file interactively")
		fmt.Println("  bootstrap --username NAME  Create the first admin user")
		fmt.Println("  health                     Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)

	// Messenger status
	if cfg.Messenger.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Messenger: ")
		cyan.Println("enabled")
	} else {
		green.Print("    ▶ ")
		fmt.Printf("Messenger: ")
		yellow.Println("disabled")
	}

	fmt.Println()

	logger.Info("starting quotedesk",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"model", cfg.Assistant.Model,
	)

	// Create and run gateway
	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Make HTTP request to health endpoint with context
	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runBootstrap performs first-time setup of the server:
// 1. Creates config file with random JWT secret (if not exists)
// 2. Creates database and the first admin user
//
// This is a one-command setup: quotedesk bootstrap --username admin
func runBootstrap(ctx context.Context) error {
	// Parse args with explicit error handling
	// Supports both "--username value" and "--username=value" formats
	var username string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--username" || arg == "-u":
			if i+1 >= len(args) {
				return fmt.Errorf("--username requires a value")
			}
			username = args[i+1]
			i++
		case strings.HasPrefix(arg, "--username="):
			username = strings.TrimPrefix(arg, "--username=")
		case strings.HasPrefix(arg, "-u="):
			username = strings.TrimPrefix(arg, "-u=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	if username == "" {
		return fmt.Errorf("--username flag is required")
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username cannot be empty or whitespace only")
	}
	if len(username) > 100 {
		return fmt.Errorf("username exceeds maximum length of 100 characters")
	}

	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "quotedesk.db")

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	// Check if config exists, create if not. The freshly written config is
	// not reloaded here: its assistant API key comes from an env var that
	// usually isn't set yet, and bootstrap only needs the database path.
	dbFile := dbPath
	httpAddr := "localhost:8080"

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Generate random JWT secret
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

		// Create config directory
		configDir := filepath.Dir(configPath)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		// Create data directory
		if err := os.MkdirAll(dataPath, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		// Write config file
		configContent := fmt.Sprintf(`# quotedesk configuration
# Generated by quotedesk bootstrap

server:
  http_addr: "localhost:8080"

database:
  path: "%s"

assistant:
  api_key: "${QUOTEDESK_API_KEY}"

admin:
  jwt_secret: "%s"

logging:
  level: "info"
  format: "text"
`, dbPath, jwtSecret)

		if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}

		green.Printf("  ✓ Created config: %s\n", configPath)
	} else {
		// Config exists, load it
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		dbFile = cfg.Database.Path
		httpAddr = cfg.Server.HTTPAddr

		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	// Open the store directly
	s, err := store.NewSQLiteStore(dbFile)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	green.Printf("  ✓ Database: %s\n", dbFile)

	// Check if any admin users already exist
	count, err := s.CountAdminUsers(ctx)
	if err != nil {
		return fmt.Errorf("checking admin users: %w", err)
	}

	if count > 0 {
		return fmt.Errorf("bootstrap already complete: %d admin user(s) exist", count)
	}

	// Read the password. The env var path exists for non-interactive
	// provisioning; otherwise prompt on stdin.
	password := os.Getenv("QUOTEDESK_ADMIN_PASSWORD")
	if password == "" {
		reader := bufio.NewReader(os.Stdin)
		password = prompt(reader, "Admin password", "")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user := &store.AdminUser{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  username,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.CreateAdminUser(ctx, user); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	green.Printf("  ✓ Created admin user: %s\n", username)

	// Print results
	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	cyan.Println("  Admin User")
	cyan.Println("  ----------")
	fmt.Printf("  ID:       %s\n", user.ID)
	fmt.Printf("  Username: %s\n", username)
	fmt.Println()

	yellow.Println("  Ready to go:")
	fmt.Println("    quotedesk serve        # start the server")
	fmt.Printf("    http://%s/admin/   # open the dashboard\n", httpAddr)
	fmt.Println()

	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("quotedesk configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "quotedesk.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")
	baseURL := prompt(reader, "Public base URL (leave empty to derive from address)", "")

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	// Assistant
	fmt.Println("\n--- Assistant Configuration ---")
	assistantURL := prompt(reader, "Chat completions URL", config.DefaultAssistantURL)
	model := prompt(reader, "Model", config.DefaultModel)
	apiKeyEnv := prompt(reader, "API key env var", "QUOTEDESK_API_KEY")

	// Messenger
	fmt.Println("\n--- Messenger Configuration ---")
	enableMessenger := prompt(reader, "Enable Facebook Messenger webhook?", "no")
	messengerEnabled := strings.ToLower(enableMessenger) == "yes" || strings.ToLower(enableMessenger) == "y"

	var pageTokenEnv, verifyToken string
	if messengerEnabled {
		pageTokenEnv = prompt(reader, "Page access token env var", "QUOTEDESK_PAGE_TOKEN")
		verifyToken = prompt(reader, "Webhook verify token", "")
	}

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate a random secret for export tokens
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# quotedesk configuration\n")
	cfg.WriteString("# Generated by quotedesk init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	if baseURL != "" {
		cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", baseURL))
	}
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("assistant:\n")
	cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", assistantURL))
	cfg.WriteString(fmt.Sprintf("  model: \"%s\"\n", model))
	cfg.WriteString(fmt.Sprintf("  api_key: \"${%s}\"\n", apiKeyEnv))
	cfg.WriteString("  timeout: \"30s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("admin:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
	cfg.WriteString("\n")

	cfg.WriteString("messenger:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", messengerEnabled))
	if messengerEnabled {
		cfg.WriteString(fmt.Sprintf("  page_access_token: \"${%s}\"\n", pageTokenEnv))
		cfg.WriteString(fmt.Sprintf("  verify_token: \"%s\"\n", verifyToken))
	}
	cfg.WriteString("\n")

	cfg.WriteString("affiliates:\n")
	cfg.WriteString("  partners: {}\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nNext steps:")
	fmt.Printf("  quotedesk bootstrap --username admin   # create the first admin\n")
	fmt.Printf("  quotedesk serve                        # start the server\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
