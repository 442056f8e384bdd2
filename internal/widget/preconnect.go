package widget

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Preconnector warms connections to an origin ahead of use.
type Preconnector interface {
	URL(ctx context.Context, rawURL string, onLayout bool)
}

// preconnectTTL is how long an origin counts as warm.
const preconnectTTL = 180 * time.Second

// HTTPPreconnector opens a connection to the origin with a HEAD request
// so the client's pool holds it when the real request comes.
type HTTPPreconnector struct {
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	warm map[string]time.Time
	wg   sync.WaitGroup
}

// NewHTTPPreconnector returns a preconnector using client. Nil uses
// http.DefaultClient.
func NewHTTPPreconnector(client *http.Client, logger *slog.Logger) *HTTPPreconnector {
	if client == nil {
		client = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPPreconnector{
		client: client,
		logger: logger,
		now:    time.Now,
		warm:   make(map[string]time.Time),
	}
}

// URL preconnects to the origin of rawURL unless it is already warm.
// Only http and https origins are contacted.
func (p *HTTPPreconnector) URL(ctx context.Context, rawURL string, onLayout bool) {
	origin, ok := originOf(rawURL)
	if !ok {
		return
	}

	now := p.now()

	p.mu.Lock()
	if until, seen := p.warm[origin]; seen && now.Before(until) {
		p.mu.Unlock()
		return
	}
	p.warm[origin] = now.Add(preconnectTTL)
	p.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, origin+"/", nil)
		if err != nil {
			return
		}

		resp, err := p.client.Do(req)
		if err != nil {
			p.logger.Debug("preconnect failed", slog.String("origin", origin), slog.String("error", err.Error()))
			return
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		p.logger.Debug("preconnected", slog.String("origin", origin), slog.Bool("on_layout", onLayout))
	}()
}

// Wait blocks until in-flight preconnects finish.
func (p *HTTPPreconnector) Wait() {
	p.wg.Wait()
}

func originOf(rawURL string) (string, bool) {
	if strings.HasPrefix(rawURL, "//") {
		rawURL = "https:" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	return scheme + "://" + u.Host, true
}
