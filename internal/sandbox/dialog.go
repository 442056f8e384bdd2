package sandbox

import (
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	// rateLimitPruneThreshold is the number of tracked IPs above which
	// the rate limiter prunes expired entries to prevent unbounded growth.
	rateLimitPruneThreshold = 1000

	rateLimitWindow  = 5 * time.Minute
	rateLimitMaxFail = 10
)

// dialogPage renders the sign-in form. The csrf_token hidden field
// prevents cross-site form submission.
var dialogPage = template.Must(template.New("dialog").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Graph sandbox</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #f0f2f5; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
  .card { background: #fff; border-radius: 8px; padding: 2rem; width: 100%; max-width: 380px; box-shadow: 0 1px 3px rgba(0,0,0,0.1); }
  .consent { background: #f8f9fa; border: 1px solid #e0e0e0; border-radius: 6px; padding: 0.6rem 0.75rem; font-size: 0.85rem; margin-bottom: 1rem; word-break: break-all; }
  .error { background: #fef2f2; color: #991b1b; border: 1px solid #fecaca; border-radius: 6px; padding: 0.6rem 0.75rem; font-size: 0.85rem; margin-bottom: 1rem; }
  label { display: block; font-size: 0.85rem; margin-bottom: 0.35rem; }
  input[type="text"], input[type="password"] { width: 100%; padding: 0.55rem; margin-bottom: 1rem; box-sizing: border-box; }
  button { width: 100%; padding: 0.6rem; margin-bottom: 0.5rem; }
</style>
</head>
<body>
<div class="card">
  <h1>Graph sandbox</h1>
  <div class="consent">
    <p><strong>{{.ClientID}}</strong> is requesting access{{if .Scope}} to <code>{{.Scope}}</code>{{end}}.</p>
    <p>You will be redirected to: <code>{{.RedirectURI}}</code></p>
  </div>
  {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
  <form method="POST">
    <input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
    <input type="hidden" name="client_id" value="{{.ClientID}}">
    <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
    <input type="hidden" name="response_type" value="token">
    <input type="hidden" name="scope" value="{{.Scope}}">
    <input type="hidden" name="state" value="{{.State}}">
    <label for="username">Username</label>
    <input type="text" id="username" name="username" autocomplete="username" autofocus>
    <label for="password">Password</label>
    <input type="password" id="password" name="password" autocomplete="current-password">
    <button type="submit" name="action" value="allow">Continue</button>
    <button type="submit" name="action" value="cancel">Cancel</button>
  </form>
</div>
</body>
</html>`))

type dialogData struct {
	CSRFToken   string
	ClientID    string
	RedirectURI string
	Scope       string
	State       string
	Error       string
}

// loginRateLimiter tracks failed login attempts per IP with a sliding
// window. After rateLimitMaxFail within the window, further attempts are
// rejected until the window expires.
type loginRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
}

func newLoginRateLimiter() *loginRateLimiter {
	return &loginRateLimiter{
		failures: make(map[string][]time.Time),
	}
}

// check returns true if the IP is currently rate-limited.
func (rl *loginRateLimiter) check(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rateLimitWindow)

	if len(rl.failures) > rateLimitPruneThreshold {
		for k, times := range rl.failures {
			if len(times) == 0 || times[len(times)-1].Before(cutoff) {
				delete(rl.failures, k)
			}
		}
	}

	recent := rl.failures[ip][:0]
	for _, t := range rl.failures[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) == 0 {
		delete(rl.failures, ip)
	} else {
		rl.failures[ip] = recent
	}

	return len(recent) >= rateLimitMaxFail
}

// record adds a failed attempt for the IP.
func (rl *loginRateLimiter) record(ip string) {
	rl.mu.Lock()
	rl.failures[ip] = append(rl.failures[ip], time.Now())
	rl.mu.Unlock()
}

// remoteIP extracts the IP address from r.RemoteAddr, stripping the
// port. Falls back to the raw value if parsing fails.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// dialogParams are the validated query or form parameters.
type dialogParams struct {
	clientID    string
	redirectURI string
	scope       string
	state       string
}

// parseDialogParams validates the request. On failure it writes the
// error page and returns false; the redirect target is never used
// before it has been validated.
func (s *Server) parseDialogParams(w http.ResponseWriter, values url.Values) (dialogParams, bool) {
	p := dialogParams{
		clientID:    values.Get("client_id"),
		redirectURI: values.Get("redirect_uri"),
		scope:       values.Get("scope"),
		state:       values.Get("state"),
	}

	if !s.clientAllowed(p.clientID) {
		http.Error(w, "Invalid App ID", http.StatusBadRequest)
		return p, false
	}

	u, err := url.Parse(p.redirectURI)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		http.Error(w, "URL blocked: redirect_uri must be an absolute http(s) URL", http.StatusBadRequest)
		return p, false
	}

	if rt := values.Get("response_type"); rt != "token" {
		http.Error(w, "Unsupported response_type "+strconv.Quote(rt)+": only the implicit flow is available", http.StatusBadRequest)
		return p, false
	}

	return p, true
}

func (s *Server) handleDialog(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleDialogGET(w, r)
	case http.MethodPost:
		s.handleDialogPOST(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDialogGET(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseDialogParams(w, r.URL.Query())
	if !ok {
		return
	}

	s.renderDialog(w, p, "")
}

func (s *Server) renderDialog(w http.ResponseWriter, p dialogParams, errMsg string) {
	csrf := RandomHex(csrfTokenBytes)
	s.store.SaveCSRF(csrf, p.clientID, p.redirectURI)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Cache-Control", "no-store")

	if errMsg != "" {
		w.WriteHeader(http.StatusUnauthorized)
	}

	if err := dialogPage.Execute(w, dialogData{
		CSRFToken:   csrf,
		ClientID:    p.clientID,
		RedirectURI: p.redirectURI,
		Scope:       p.scope,
		State:       p.state,
		Error:       errMsg,
	}); err != nil {
		s.logger.Warn("sandbox: rendering dialog", slog.String("error", err.Error()))
	}
}

func (s *Server) handleDialogPOST(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	p, ok := s.parseDialogParams(w, r.PostForm)
	if !ok {
		return
	}

	if !s.store.ConsumeCSRF(r.PostForm.Get("csrf_token"), p.clientID, p.redirectURI) {
		http.Error(w, "invalid or expired form, reload the sign-in page", http.StatusForbidden)
		return
	}

	if r.PostForm.Get("action") == "cancel" {
		redirectDenied(w, r, p)
		return
	}

	ip := remoteIP(r)
	if s.limiter.check(ip) {
		s.logger.Warn("sandbox: login rate limited", slog.String("ip", ip))
		http.Error(w, "too many failed attempts, try again later", http.StatusTooManyRequests)

		return
	}

	acct, found := s.accounts[r.PostForm.Get("username")]
	if !found || bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(r.PostForm.Get("password"))) != nil {
		s.limiter.record(ip)
		s.logger.Info("sandbox: failed sign-in", slog.String("ip", ip))
		s.renderDialog(w, p, "Incorrect username or password.")

		return
	}

	scopes := splitScope(p.scope)
	ti := s.store.IssueToken(acct.ID, scopes, s.cfg.TokenTTL)

	s.logger.Info("sandbox: token issued",
		slog.String("user", acct.ID),
		slog.String("client_id", p.clientID),
		slog.Any("scopes", scopes),
	)

	http.Redirect(w, r, tokenRedirect(p, ti.Token, s.cfg.TokenTTL), http.StatusFound)
}

// tokenRedirect puts the token in the fragment of the redirect target,
// replacing any fragment it already had.
func tokenRedirect(p dialogParams, token string, ttl time.Duration) string {
	u, _ := url.Parse(p.redirectURI)
	u.Fragment = ""
	u.RawFragment = ""

	v := url.Values{}
	v.Set("access_token", token)
	v.Set("expires_in", strconv.Itoa(int(ttl.Seconds())))

	if p.state != "" {
		v.Set("state", p.state)
	}

	return u.String() + "#" + v.Encode()
}

// redirectDenied sends the user-agent back with the provider's
// cancellation parameters in the query.
func redirectDenied(w http.ResponseWriter, r *http.Request, p dialogParams) {
	u, _ := url.Parse(p.redirectURI)
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	q.Set("error", "access_denied")
	q.Set("error_code", "200")
	q.Set("error_description", "Permissions error")
	q.Set("error_reason", "user_denied")

	if p.state != "" {
		q.Set("state", p.state)
	}

	u.RawQuery = q.Encode()

	http.Redirect(w, r, u.String()+"#_=_", http.StatusFound)
}

func splitScope(scope string) []string {
	return strings.FieldsFunc(scope, func(r rune) bool { return r == ',' || r == ' ' })
}
