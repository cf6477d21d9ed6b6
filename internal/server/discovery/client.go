package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/logging"
	"golang.org/x/sync/singleflight"
)

// ErrUnavailable is returned by lookups while the editor cannot be reached.
var ErrUnavailable = errors.New("editor discovery unavailable")

const (
	discoveryPath = "/hosting/discovery"

	// DefaultTimeout bounds one discovery fetch.
	DefaultTimeout = 500 * time.Millisecond
	// DefaultRetryInterval is the minimum gap between reload attempts
	// while offline.
	DefaultRetryInterval = 30 * time.Second
)

// Client keeps the editor's discovery table. It starts offline and goes
// online after the first successful Load; lookups made while offline
// trigger a throttled reload.
type Client struct {
	url           string
	http          *http.Client
	retryInterval time.Duration
	logger        logging.Logger

	table atomic.Pointer[Table]
	group singleflight.Group

	mu          sync.Mutex
	lastAttempt time.Time
}

func NewClient(editorURL string, logger logging.Logger) (*Client, error) {
	base, err := url.Parse(editorURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, common.NewValidationError("editor_url", fmt.Sprintf("invalid url %q", editorURL))
	}
	return &Client{
		url:           base.JoinPath(discoveryPath).String(),
		http:          &http.Client{Timeout: DefaultTimeout},
		retryInterval: DefaultRetryInterval,
		logger:        logger.With("module", "discovery"),
	}, nil
}

// NewStatic returns an always-online client serving t.
func NewStatic(t *Table) *Client {
	c := &Client{logger: logging.Nop()}
	c.table.Store(t)
	return c
}

// Online reports whether a discovery table is loaded.
func (c *Client) Online() bool {
	return c.table.Load() != nil
}

// Load fetches and parses the discovery document. Concurrent calls share
// one fetch. On failure the previously loaded table, if any, is kept.
func (c *Client) Load(ctx context.Context) error {
	if c.url == "" {
		return nil
	}

	c.mu.Lock()
	c.lastAttempt = time.Now()
	c.mu.Unlock()

	// The fetch is shared, so it must not die with the first caller;
	// the http client timeout bounds it.
	shared := context.WithoutCancel(ctx)
	_, err, _ := c.group.Do("load", func() (any, error) {
		t, err := c.fetch(shared)
		if err != nil {
			return nil, err
		}
		c.table.Store(t)
		return nil, nil
	})
	if err != nil {
		c.logger.Warn(ctx, "cannot load discovery", "url", c.url, "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.logger.Info(ctx, "discovery loaded", "url", c.url)
	return nil
}

func (c *Client) fetch(ctx context.Context) (*Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return Parse(resp.Body)
}

func (c *Client) current(ctx context.Context) (*Table, error) {
	if t := c.table.Load(); t != nil {
		return t, nil
	}

	c.mu.Lock()
	due := time.Since(c.lastAttempt) >= c.retryInterval
	c.mu.Unlock()

	if due {
		_ = c.Load(ctx)
	}
	if t := c.table.Load(); t != nil {
		return t, nil
	}
	return nil, ErrUnavailable
}

// Lookup returns the editor URL for action on files with extension ext.
// It fails with ErrUnavailable while offline and common.ErrorNotFound when
// the editor does not support the pair.
func (c *Client) Lookup(ctx context.Context, ext, action string) (string, error) {
	t, err := c.current(ctx)
	if err != nil {
		return "", err
	}
	u, ok := t.Lookup(ext, action)
	if !ok {
		return "", common.ErrorNotFound
	}
	return u, nil
}

// LookupMime is Lookup keyed by mime type.
func (c *Client) LookupMime(ctx context.Context, mime, action string) (string, error) {
	t, err := c.current(ctx)
	if err != nil {
		return "", err
	}
	u, ok := t.LookupMime(mime, action)
	if !ok {
		return "", common.ErrorNotFound
	}
	return u, nil
}
