package sandbox

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alexjbarnes/ampwidgets/internal/graph"
)

const (
	apiPrefix  = "/v2.9/"
	dialogPath = "/v2.9/dialog/oauth"

	// DefaultTokenTTL matches the provider's short-lived user tokens.
	DefaultTokenTTL = 2 * time.Hour

	// PublishScope is required to like and comment.
	PublishScope = "publish_actions"
)

// Account is a user who can sign in through the dialog.
type Account struct {
	ID           string
	Name         string
	Username     string
	PasswordHash string
}

// Config configures a Server.
type Config struct {
	// ServerURL is the externally visible origin, used for paging links.
	ServerURL string
	// ClientIDs lists accepted client ids. Empty accepts any.
	ClientIDs []string
	// Users maps usernames to bcrypt hashes.
	Users    map[string]string
	TokenTTL time.Duration
	Fixtures *Fixtures
}

// Server serves the dialog and the Graph API subset.
type Server struct {
	cfg      Config
	store    *Store
	data     *Data
	accounts map[string]Account
	limiter  *loginRateLimiter
	logger   *slog.Logger
}

// New creates a Server seeded with cfg.Fixtures.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("sandbox server URL is required")
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}

	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		store:    NewStore(),
		data:     NewData(),
		accounts: make(map[string]Account),
		limiter:  newLoginRateLimiter(),
		logger:   logger,
	}

	s.data.Seed(cfg.Fixtures)

	if cfg.Fixtures != nil {
		for _, u := range cfg.Fixtures.Users {
			if u.Username == "" || u.PasswordHash == "" {
				continue
			}

			s.accounts[u.Username] = Account{ID: u.ID, Name: u.Name, Username: u.Username, PasswordHash: u.PasswordHash}
		}
	}

	for username, hash := range cfg.Users {
		if _, exists := s.accounts[username]; exists {
			continue
		}

		s.accounts[username] = Account{ID: username, Name: username, Username: username, PasswordHash: hash}
		s.data.AddUser(graph.Profile{ID: username, Name: username})
	}

	if len(s.accounts) == 0 {
		s.store.Stop()
		return nil, fmt.Errorf("sandbox needs at least one account")
	}

	return s, nil
}

// Close stops background cleanup.
func (s *Server) Close() {
	s.store.Stop()
}

// Data exposes the served content.
func (s *Server) Data() *Data { return s.data }

// Store exposes issued tokens.
func (s *Server) Store() *Store { return s.store }

// IssueToken signs username in without the dialog.
func (s *Server) IssueToken(username string, scopes []string) (string, error) {
	acct, ok := s.accounts[username]
	if !ok {
		return "", fmt.Errorf("unknown sandbox user %q", username)
	}

	return s.store.IssueToken(acct.ID, scopes, s.cfg.TokenTTL).Token, nil
}

// ServeHTTP routes on the escaped path: Graph object ids may be
// percent-encoded URLs, which a ServeMux would clean and redirect.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.EscapedPath()

	switch {
	case path == dialogPath:
		s.handleDialog(w, r)
	case strings.HasPrefix(path, apiPrefix):
		s.requireToken(http.HandlerFunc(s.handleGraph)).ServeHTTP(w, r)
	default:
		writeGraphError(w, http.StatusNotFound, "GraphMethodException", 100, "Unknown path components: "+path)
	}
}

func (s *Server) clientAllowed(clientID string) bool {
	if clientID == "" {
		return false
	}

	if len(s.cfg.ClientIDs) == 0 {
		return true
	}

	for _, id := range s.cfg.ClientIDs {
		if id == clientID {
			return true
		}
	}

	return false
}
