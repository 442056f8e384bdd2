package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for the ampwidgets CLI.
type Config struct {
	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development" validate:"oneof=development production"`
	LogLevel    string `env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`

	// Provider endpoints. Point both at a graph-sandbox for local work.
	GraphAPIBaseURL string `env:"GRAPH_API_BASE_URL" envDefault:"https://graph.facebook.com/v2.9/" validate:"required,http_url"`
	OAuthDialogURL  string `env:"OAUTH_DIALOG_URL" envDefault:"https://www.facebook.com/v2.9/dialog/oauth" validate:"required,http_url"`
	OAuthClientID   string `env:"OAUTH_CLIENT_ID" envDefault:"733349513518212" validate:"required"`

	// Scopes requested by each widget. An empty scope is left out of the
	// dialog URL.
	LikeScope     string `env:"LIKE_SCOPE" envDefault:"publish_actions,user_likes"`
	CommentsScope string `env:"COMMENTS_SCOPE"`

	// Session storage. The bolt file defaults to ~/.ampwidgets/session.db.
	SessionBackend string `env:"SESSION_BACKEND" envDefault:"bolt" validate:"oneof=bolt keyring memory"`
	SessionDBPath  string `env:"SESSION_DB_PATH"`
	SessionKey     string `env:"SESSION_KEY" envDefault:"oauth2-fb" validate:"required"`

	// Loopback page the browser is redirected back to. Port 0 picks a
	// free port, which changes the redirect URI on every run.
	CallbackPort int  `env:"CALLBACK_PORT" envDefault:"8085" validate:"min=0,max=65535"`
	SkipBrowser  bool `env:"SKIP_BROWSER" envDefault:"false"`
}

// SandboxConfig holds configuration for the graph-sandbox server.
type SandboxConfig struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development" validate:"oneof=development production"`
	LogLevel    string `env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`

	ListenAddr string `env:"SANDBOX_LISTEN_ADDR" envDefault:"127.0.0.1:8086" validate:"required,hostname_port"`
	// ServerURL is the externally visible origin, used in paging links.
	// Defaults to http://<listen addr>.
	ServerURL string   `env:"SANDBOX_SERVER_URL" validate:"omitempty,http_url"`
	Users     string   `env:"SANDBOX_USERS"`
	ClientIDs []string `env:"SANDBOX_CLIENT_IDS" envDefault:"733349513518212" envSeparator:","`
	Fixtures  string   `env:"SANDBOX_FIXTURES"`

	TokenTTL time.Duration `env:"SANDBOX_TOKEN_TTL" envDefault:"2h" validate:"gt=0"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report the environment variable instead of the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("env"), ",")
		if name == "" {
			return f.Name
		}

		return name
	})

	return v
}

// check validates cfg and turns the first failure into a readable error.
func check(cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", fe.Field(), fe.Param())
	case "http_url":
		return fmt.Errorf("%s must be an absolute http(s) URL", fe.Field())
	default:
		return fmt.Errorf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := check(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// Resolve the session file to an absolute path at startup so a later
	// chdir cannot split the session across two files.
	if cfg.SessionDBPath != "" {
		absPath, err := filepath.Abs(cfg.SessionDBPath)
		if err != nil {
			return nil, fmt.Errorf("resolving session db path to absolute path: %w", err)
		}

		cfg.SessionDBPath = absPath
	}

	return cfg, nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// CallbackURL is the loopback page URL for port. It is the redirect
// target registered with the provider.
func CallbackURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d/", port)
}

// LoadSandbox reads the graph-sandbox configuration.
func LoadSandbox() (*SandboxConfig, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &SandboxConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := check(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.Users == "" && cfg.Fixtures == "" {
		return nil, fmt.Errorf("validating config: at least one of SANDBOX_USERS or SANDBOX_FIXTURES is required")
	}

	if _, err := cfg.ParseUsers(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://" + cfg.ListenAddr
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")

	if cfg.Fixtures != "" {
		absPath, err := filepath.Abs(cfg.Fixtures)
		if err != nil {
			return nil, fmt.Errorf("resolving fixtures path to absolute path: %w", err)
		}

		cfg.Fixtures = absPath
	}

	return cfg, nil
}

// IsProduction returns true when the environment is set to production.
func (c *SandboxConfig) IsProduction() bool {
	return c.Environment == "production"
}

// bcryptPrefix starts every bcrypt hash the sandbox accepts.
const bcryptPrefix = "$2"

// ParseUsers parses the SANDBOX_USERS string into a username to bcrypt
// hash map. Format: "user1:$2a$10$...,user2:$2a$10$..."
func (c *SandboxConfig) ParseUsers() (map[string]string, error) {
	users := make(map[string]string)
	if c.Users == "" {
		return users, nil
	}

	for _, pair := range strings.Split(c.Users, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		idx := strings.Index(pair, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid user entry (missing ':')")
		}

		username := pair[:idx]

		hash := pair[idx+1:]
		if username == "" || hash == "" {
			return nil, fmt.Errorf("empty username or hash in entry %d", len(users)+1)
		}

		if !strings.HasPrefix(hash, bcryptPrefix) {
			return nil, fmt.Errorf("password for %q must be a bcrypt hash (see graph-sandbox hash-password)", username)
		}

		if _, dup := users[username]; dup {
			return nil, fmt.Errorf("duplicate username %q in SANDBOX_USERS", username)
		}

		users[username] = hash
	}

	return users, nil
}
