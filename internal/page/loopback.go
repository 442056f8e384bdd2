package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "github.com/alexjbarnes/ampwidgets/internal/errors"
	"github.com/pkg/browser"
)

const maxLoadBodyBytes = 8 * 1024

// Loopback is a page served on 127.0.0.1. It is the redirect target for
// the implicit flow: the provider sends the browser back to the page
// with the token in the fragment, which never reaches a server, so the
// page posts its own location back to the process.
type Loopback struct {
	listener    net.Listener
	server      *http.Server
	base        *url.URL
	logger      *slog.Logger
	skipBrowser bool
	open        func(string) error

	mu        sync.Mutex
	current   *url.URL
	navigated *url.URL
	closed    bool
	loads     chan *url.URL
}

// LoopbackOption configures a Loopback.
type LoopbackOption func(*Loopback)

// WithSkipBrowser prints navigation targets instead of opening them.
func WithSkipBrowser(skip bool) LoopbackOption {
	return func(l *Loopback) {
		l.skipBrowser = skip
	}
}

// WithOpener replaces browser.OpenURL.
func WithOpener(open func(string) error) LoopbackOption {
	return func(l *Loopback) {
		l.open = open
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LoopbackOption {
	return func(l *Loopback) {
		l.logger = logger
	}
}

// NewLoopback listens on 127.0.0.1:port. Port 0 picks a free port.
func NewLoopback(port int, opts ...LoopbackOption) (*Loopback, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("listening for page loads: %w", err)
	}

	base := &url.URL{Scheme: "http", Host: ln.Addr().String(), Path: "/"}

	l := &Loopback{
		listener: ln,
		base:     base,
		logger:   slog.Default(),
		open:     browser.OpenURL,
		current:  cloneURL(base),
		loads:    make(chan *url.URL, 1),
	}

	for _, opt := range opts {
		opt(l)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", l.handlePage)
	mux.HandleFunc("GET /page.js", l.handleScript)
	mux.HandleFunc("POST /load", l.handleLoad)

	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return l, nil
}

// BaseURL is the address of the page before any fragment is added.
func (l *Loopback) BaseURL() *url.URL {
	return cloneURL(l.base)
}

// Serve handles page loads until ctx is done.
func (l *Loopback) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := l.server.Serve(l.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	l.logger.Debug("page server listening", slog.String("url", l.base.String()))

	var serveErr error

	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.server.Shutdown(shutdownCtx); err != nil {
		l.logger.Warn("page server shutdown", slog.String("error", err.Error()))
	}

	if serveErr != nil {
		return fmt.Errorf("serving page: %w", serveErr)
	}

	return nil
}

func (l *Loopback) URL() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()

	return cloneURL(l.current)
}

// ReplaceURL updates the URL the process considers current. The browser
// address bar is not rewritten.
func (l *Loopback) ReplaceURL(u *url.URL) error {
	l.mu.Lock()
	l.current = cloneURL(u)
	l.mu.Unlock()

	return nil
}

// Navigate opens target in the system browser. The page is considered
// left until the browser comes back through WaitForLoad.
func (l *Loopback) Navigate(_ context.Context, target *url.URL) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return apperrors.ErrNavigationUnavailable
	}

	l.navigated = cloneURL(target)
	l.mu.Unlock()

	dest := target.String()

	if l.skipBrowser {
		l.logger.Info("Please open this URL in your browser", slog.String("url", dest))
		return nil
	}

	l.logger.Info("Opening browser", slog.String("url", dest))

	if err := l.open(dest); err != nil {
		l.logger.Warn("Failed to open browser", slog.String("error", err.Error()))
		l.logger.Info("Please manually open this URL in your browser", slog.String("url", dest))
	}

	return nil
}

// Navigated returns the pending navigation target, if any.
func (l *Loopback) Navigated() (*url.URL, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.navigated == nil {
		return nil, false
	}

	return cloneURL(l.navigated), true
}

// WaitForLoad blocks until the browser loads the page again and returns
// the URL it was loaded with.
func (l *Loopback) WaitForLoad(ctx context.Context) (*url.URL, error) {
	select {
	case u := <-l.loads:
		return u, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for page load: %w", ctx.Err())
	}
}

func (l *Loopback) handlePage(w http.ResponseWriter, _ *http.Request) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if _, err := io.WriteString(w, pageHTML); err != nil {
		l.logger.Warn("writing page", slog.String("error", err.Error()))
	}
}

func (l *Loopback) handleScript(w http.ResponseWriter, _ *http.Request) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")

	if _, err := io.WriteString(w, pageJS); err != nil {
		l.logger.Warn("writing page script", slog.String("error", err.Error()))
	}
}

// handleLoad receives location.href from the browser.
func (l *Loopback) handleLoad(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxLoadBodyBytes))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	loaded, err := url.Parse(strings.TrimSpace(string(raw)))
	if err != nil || loaded.Host != l.base.Host || loaded.Scheme != l.base.Scheme {
		l.logger.Warn("rejected page load from foreign location")
		http.Error(w, "bad request", http.StatusBadRequest)

		return
	}

	l.mu.Lock()
	l.current = cloneURL(loaded)
	l.navigated = nil
	l.mu.Unlock()

	// Keep only the latest load.
	select {
	case <-l.loads:
	default:
	}
	l.loads <- loaded

	l.logger.Debug("page loaded", slog.Bool("has_fragment", loaded.Fragment != ""))
	w.WriteHeader(http.StatusNoContent)
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; script-src 'self'; connect-src 'self'; style-src 'unsafe-inline'")
}

const pageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>ampwidgets</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }
        .message { padding: 20px; border-radius: 5px; background-color: #e7f3ff; color: #0066cc; }
    </style>
    <script src="/page.js" defer></script>
</head>
<body>
    <div class="message"><p id="status">Returning to the terminal...</p></div>
</body>
</html>`

const pageJS = `fetch("/load", {
  method: "POST",
  headers: {"Content-Type": "text/plain"},
  body: window.location.href
}).then(function (resp) {
  document.getElementById("status").textContent = resp.ok ?
      "Done. You can close this window and return to the terminal." :
      "The terminal did not accept this page.";
});
`
