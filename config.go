package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/go-authgate/session-gateway/gateway"
)

var (
	serverURL         string
	tokenFile         string
	requestTimeout    time.Duration
	refreshTimeout    time.Duration
	singleFlight      bool
	logLevel          zerolog.Level
	flagServerURL     *string
	flagTokenFile     *string
	flagLogLevel      *string
	configInitialized bool
)

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Define flags (but don't parse yet to avoid conflicts with test flags)
	flagServerURL = flag.String(
		"server-url",
		"",
		"API base URL (default: http://localhost:8080 or SERVER_URL env)",
	)
	flagTokenFile = flag.String(
		"token-file",
		"",
		"Session storage file (default: .session-gateway.json or TOKEN_FILE env)",
	)
	flagLogLevel = flag.String("log-level", "", "Log level (default: warn or LOG_LEVEL env)")
}

// initConfig parses flags and initializes configuration.
// Separated from init() to avoid conflicts with test flag parsing.
func initConfig() {
	if configInitialized {
		return
	}
	configInitialized = true

	flag.Usage = usage
	flag.Parse()

	// Priority: flag > env > default
	serverURL = getConfig(*flagServerURL, "SERVER_URL", "http://localhost:8080")
	tokenFile = getConfig(*flagTokenFile, "TOKEN_FILE", ".session-gateway.json")

	if err := validateServerURL(serverURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid SERVER_URL: %v\n", err)
		os.Exit(1)
	}

	var err error
	if requestTimeout, err = getDuration("REQUEST_TIMEOUT", gateway.DefaultRequestTimeout); err != nil {
		exitConfig(err)
	}
	if refreshTimeout, err = getDuration("REFRESH_TIMEOUT", gateway.DefaultRefreshTimeout); err != nil {
		exitConfig(err)
	}
	if singleFlight, err = getBool("SINGLE_FLIGHT_REFRESH", true); err != nil {
		exitConfig(err)
	}
	if logLevel, err = zerolog.ParseLevel(getConfig(*flagLogLevel, "LOG_LEVEL", "warn")); err != nil {
		exitConfig(fmt.Errorf("LOG_LEVEL: %w", err))
	}

	// Warn if using HTTP instead of HTTPS
	if strings.HasPrefix(strings.ToLower(serverURL), "http://") {
		fmt.Fprintln(
			os.Stderr,
			"⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!",
		)
		fmt.Fprintln(
			os.Stderr,
			"⚠️  This is only safe for local development. Use HTTPS in production.",
		)
		fmt.Fprintln(os.Stderr)
	}
}

func exitConfig(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Usage: session-gateway [flags] <command> [args]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  login EMAIL PASSWORD     create a session")
	fmt.Fprintln(out, "  logout                   close the session")
	fmt.Fprintln(out, "  me                       show the current user")
	fmt.Fprintln(out, "  status                   show the stored session")
	fmt.Fprintln(out, "  get PATH                 authenticated GET")
	fmt.Fprintln(out, "  post PATH JSON           authenticated POST")
	fmt.Fprintln(out, "  upload PATH FIELD FILE   authenticated multipart upload")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Flags:")
	flag.PrintDefaults()
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got: %s", key, raw)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// newLogger writes human-readable logs to stderr, below the TUI.
func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(logLevel).
		With().
		Timestamp().
		Logger()
}

// gatewayOptions assembles the client options from the loaded configuration.
func gatewayOptions(nav gateway.Navigator, observer gateway.Observer, logger *zerolog.Logger) gateway.Options {
	return gateway.Options{
		BaseURL:                  serverURL,
		Navigator:                nav,
		Observer:                 observer,
		Logger:                   logger,
		RequestTimeout:           requestTimeout,
		RefreshTimeout:           refreshTimeout,
		DisableRefreshCoalescing: !singleFlight,
	}
}
