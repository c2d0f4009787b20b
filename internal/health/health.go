// Package health probes the services the API depends on.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const (
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusOK       = "ok"
)

// Check probes one dependency and returns nil when it is reachable.
type Check func(ctx context.Context) error

// Report is the outcome of running every registered check.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Ready reports whether every check passed.
func (r Report) Ready() bool { return r.Status == StatusReady }

type namedCheck struct {
	name  string
	check Check
}

// Checker runs dependency checks concurrently, each bounded by a timeout.
type Checker struct {
	timeout time.Duration
	checks  []namedCheck
}

// NewChecker returns a Checker whose checks time out after timeout.
func NewChecker(timeout time.Duration) *Checker {
	return &Checker{timeout: timeout}
}

// Add registers a named check.
func (c *Checker) Add(name string, check Check) *Checker {
	c.checks = append(c.checks, namedCheck{name: name, check: check})
	return c
}

// Names lists the registered checks, sorted.
func (c *Checker) Names() []string {
	names := make([]string, 0, len(c.checks))
	for _, nc := range c.checks {
		names = append(names, nc.name)
	}
	sort.Strings(names)
	return names
}

// Run executes all checks and collects their outcome. Failed checks report their error text.
func (c *Checker) Run(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		report = Report{Status: StatusReady, Checks: make(map[string]string, len(c.checks))}
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, nc := range c.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, c.timeout)
			defer cancel()

			result := StatusOK
			if err := nc.check(cctx); err != nil {
				result = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			report.Checks[nc.name] = result
			if result != StatusOK {
				report.Status = StatusNotReady
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Database checks a SQL connection pool.
func Database(db Pinger) Check {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

// Redis checks a Redis server.
func Redis(client redis.UniversalClient) Check {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// NewHTTPClient returns a traced HTTP client for outbound probes.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Ollama checks that the model server at baseURL answers its tag listing.
func Ollama(client *http.Client, baseURL string) Check {
	url := strings.TrimRight(baseURL, "/") + "/api/tags"
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil
	}
}
