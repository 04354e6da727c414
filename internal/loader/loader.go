// Package loader retrieves the named CSV datasets the reconciliation runs on.
//
// A dataset whose retrieval fails is reported and left out of the result; the
// failure only surfaces to callers when they ask for that dataset by name.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/telhawk-systems/reconcile/common/logging"
	"github.com/telhawk-systems/reconcile/common/table"
	"github.com/telhawk-systems/reconcile/internal/metrics"
)

// Logical dataset names every pipeline run depends on.
const (
	Intake  = "intake"
	Outcome = "outcome"
)

// Loader fetches CSV datasets over HTTP(S) or from local files.
type Loader struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	logger    *logging.Logger
}

// New creates a loader. A nil client falls back to NewHTTPClient(60s), a nil
// logger discards diagnostics.
func New(client *http.Client, userAgent string, logger *logging.Logger) *Loader {
	if client == nil {
		client = NewHTTPClient(60 * time.Second)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Loader{client: client, userAgent: userAgent, logger: logger}
}

// WithRateLimit spaces retrievals to at most rps requests per second.
// A non-positive rps removes the limit.
func (l *Loader) WithRateLimit(rps float64, burst int) *Loader {
	if rps <= 0 {
		l.limiter = nil
		return l
	}
	if burst < 1 {
		burst = 1
	}
	l.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return l
}

// Datasets holds the tables that were retrieved and the retrievals that failed.
type Datasets struct {
	tables   map[string]*table.Table
	failures []*RetrievalError
}

// Get returns the named table or a *MissingDatasetError.
func (d *Datasets) Get(name string) (*table.Table, error) {
	t, ok := d.tables[name]
	if !ok {
		return nil, &MissingDatasetError{Name: name}
	}
	return t, nil
}

// Names returns the retrieved dataset names, sorted.
func (d *Datasets) Names() []string {
	names := make([]string, 0, len(d.tables))
	for name := range d.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Failures returns the retrievals that did not succeed, in load order.
func (d *Datasets) Failures() []*RetrievalError {
	return d.failures
}

// IntakeOutcome returns the "intake" and "outcome" tables. Either one missing
// is fatal for everything downstream.
func (d *Datasets) IntakeOutcome() (*table.Table, *table.Table, error) {
	intake, err := d.Get(Intake)
	if err != nil {
		return nil, nil, err
	}
	outcome, err := d.Get(Outcome)
	if err != nil {
		return nil, nil, err
	}
	return intake, outcome, nil
}

// Load retrieves every dataset in sources (logical name -> address). It never
// fails as a whole: unsuccessful retrievals are logged, counted and omitted.
// There are no retries.
func (l *Loader) Load(ctx context.Context, sources map[string]string) *Datasets {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	ds := &Datasets{tables: make(map[string]*table.Table, len(sources))}
	for _, name := range names {
		addr := sources[name]
		start := time.Now()
		t, err := l.fetch(ctx, name, addr)
		metrics.RetrievalDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		if err != nil {
			var rerr *RetrievalError
			if !errors.As(err, &rerr) {
				rerr = &RetrievalError{Name: name, Address: addr, Err: err}
			}
			ds.failures = append(ds.failures, rerr)
			metrics.RetrievalFailures.WithLabelValues(name, failureReason(rerr)).Inc()
			l.logger.WarnContext(ctx, "Failed to retrieve dataset",
				logging.Dataset(strings.ToUpper(name)),
				logging.URL(addr),
				logging.Status(rerr.StatusCode),
				logging.Error(rerr))
			continue
		}

		ds.tables[name] = t
		metrics.DatasetsRetrieved.WithLabelValues(name).Inc()
		metrics.RowsLoaded.WithLabelValues(name).Add(float64(t.Rows()))
		l.logger.InfoContext(ctx, "Successfully retrieved dataset",
			logging.Dataset(strings.ToUpper(name)),
			logging.Rows(t.Rows()),
			logging.Duration(time.Since(start)))
	}
	return ds
}

func (l *Loader) fetch(ctx context.Context, name, addr string) (*table.Table, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, &RetrievalError{Name: name, Address: addr, Err: fmt.Errorf("rate limit: %w", err)}
		}
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, &RetrievalError{Name: name, Address: addr, Err: fmt.Errorf("parse address: %w", err)}
	}

	switch u.Scheme {
	case "http", "https":
		return l.fetchHTTP(ctx, name, addr)
	case "file":
		return fetchFile(name, addr, u.Path)
	case "":
		return fetchFile(name, addr, addr)
	default:
		return nil, &RetrievalError{Name: name, Address: addr, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
}

func (l *Loader) fetchHTTP(ctx context.Context, name, addr string) (*table.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, &RetrievalError{Name: name, Address: addr, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "text/csv")
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &RetrievalError{Name: name, Address: addr, Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &RetrievalError{Name: name, Address: addr, StatusCode: resp.StatusCode}
	}

	t, err := table.ReadCSV(resp.Body)
	if err != nil {
		return nil, &RetrievalError{Name: name, Address: addr, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return t, nil
}

func fetchFile(name, addr, path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		status := 0
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		return nil, &RetrievalError{Name: name, Address: addr, StatusCode: status, Err: err}
	}
	defer f.Close()

	t, err := table.ReadCSV(f)
	if err != nil {
		return nil, &RetrievalError{Name: name, Address: addr, StatusCode: http.StatusOK, Err: fmt.Errorf("decode: %w", err)}
	}
	return t, nil
}

func failureReason(e *RetrievalError) string {
	switch {
	case e.StatusCode == http.StatusOK:
		return "decode"
	case e.StatusCode != 0:
		return "status"
	default:
		return "transport"
	}
}
