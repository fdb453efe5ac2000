// Package transport implements the Transport component (spec §4.5): a
// thin WebDAV client wrapper knowing nothing of symbolic paths or the
// dataset's domain model, built on github.com/studio-b12/gowebdav.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"
	"golang.org/x/net/http2"
)

// Error wraps a failed remote operation (the underlying WebDAV client's
// error), per spec §7's TransportError kind.
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: %s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// BasicAuth carries optional WebDAV credentials.
type BasicAuth struct {
	User string
	Pass string
}

// Config is the recognized configuration set from spec §4.5.
type Config struct {
	ParallelConnections int
	UseHTTP2            bool
	Auth                *BasicAuth
	Timeout             time.Duration
	Profile             bool
}

// DefaultConfig matches the spec's default per-request timeout (60s) and a
// single connection.
func DefaultConfig() Config {
	return Config{ParallelConnections: 1, Timeout: 60 * time.Second}
}

// Client is a dataset-agnostic WebDAV client for one remote root.
type Client struct {
	cli     *gowebdav.Client
	cfg     Config
	timings []timing
}

type timing struct {
	Op       string
	Duration time.Duration
}

// New dials a WebDAV client against rawURL, normalizing the webdav://
// scheme alias to http(s)://, per spec §4.5.
func New(rawURL string, cfg Config) (*Client, error) {
	normalized := normalizeScheme(rawURL)

	user, pass := "", ""
	if cfg.Auth != nil {
		user, pass = cfg.Auth.User, cfg.Auth.Pass
	}

	c := gowebdav.NewClient(normalized, user, pass)

	transport := &http.Transport{
		MaxConnsPerHost:     maxInt(cfg.ParallelConnections, 1),
		MaxIdleConnsPerHost: maxInt(cfg.ParallelConnections, 1),
		TLSClientConfig:     &tls.Config{},
	}
	if cfg.UseHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("configure http2 transport: %w", err)
		}
	}
	c.SetTransport(transport)

	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}

	return &Client{cli: c, cfg: cfg}, nil
}

func normalizeScheme(rawURL string) string {
	if strings.HasPrefix(rawURL, "webdav://") {
		return "http://" + strings.TrimPrefix(rawURL, "webdav://")
	}
	if strings.HasPrefix(rawURL, "webdavs://") {
		return "https://" + strings.TrimPrefix(rawURL, "webdavs://")
	}
	return rawURL
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (c *Client) record(op string, start time.Time) {
	if c.cfg.Profile {
		c.timings = append(c.timings, timing{Op: op, Duration: time.Since(start)})
	}
}

// Timings returns every recorded operation duration; empty unless
// Config.Profile was set.
func (c *Client) Timings() []timing { return c.timings }

// Check probes reachability by statting the dataset root.
func (c *Client) Check(ctx context.Context) error {
	defer c.record("check", time.Now())
	_, err := c.cli.StatWithContext(ctx, "/")
	if err != nil {
		return &Error{Op: "check", Err: err}
	}
	return nil
}

// FetchSchema returns the bytes of .blackbird/schema.json.
func (c *Client) FetchSchema(ctx context.Context) ([]byte, error) {
	defer c.record("fetch_schema", time.Now())
	payload, err := c.cli.ReadWithContext(ctx, ".blackbird/schema.json")
	if err != nil {
		return nil, &Error{Op: "fetch_schema", Err: err}
	}
	return payload, nil
}

// FetchIndex returns the bytes of the canonical remote binary index,
// always downloaded in full at the start of a sync.
func (c *Client) FetchIndex(ctx context.Context, indexFileName string) ([]byte, error) {
	defer c.record("fetch_index", time.Now())
	payload, err := c.cli.ReadWithContext(ctx, path.Join(".blackbird", indexFileName))
	if err != nil {
		return nil, &Error{Op: "fetch_index", Err: err}
	}
	return payload, nil
}

// Entry is one remote directory listing entry.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
}

// List performs a PROPFIND on remoteDir. Used rarely: the remote index is
// normally authoritative.
func (c *Client) List(ctx context.Context, remoteDir string) ([]Entry, error) {
	defer c.record("list", time.Now())
	infos, err := c.cli.ReadDirWithContext(ctx, remoteDir)
	if err != nil {
		return nil, &Error{Op: "list", Err: err}
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{Name: info.Name(), IsDir: info.IsDir(), Size: info.Size()})
	}
	return entries, nil
}

// Download fetches remoteRel into localAbs. Single attempt — retry is the
// Synchronizer's and Pipeline's concern. Returns the number of bytes
// written.
func (c *Client) Download(ctx context.Context, remoteRel, localAbs string) (int64, error) {
	defer c.record("download", time.Now())

	stream, err := c.cli.ReadStreamWithContext(ctx, remoteRel)
	if err != nil {
		return 0, &Error{Op: "download", Err: err}
	}
	defer stream.Close()

	f, err := os.Create(localAbs)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", localAbs, err)
	}
	defer f.Close()

	n, err := io.Copy(f, stream)
	if err != nil {
		return n, &Error{Op: "download", Err: err}
	}
	return n, nil
}

// Upload performs MKCOL for missing parent collections, then PUTs
// localAbs to remoteRel.
func (c *Client) Upload(ctx context.Context, localAbs, remoteRel string) error {
	defer c.record("upload", time.Now())

	if err := c.cli.MkdirAllWithContext(ctx, path.Dir(remoteRel), 0o755); err != nil {
		return &Error{Op: "upload", Err: err}
	}

	f, err := os.Open(localAbs)
	if err != nil {
		return fmt.Errorf("open %s: %w", localAbs, err)
	}
	defer f.Close()

	if err := c.cli.WriteStreamWithContext(ctx, remoteRel, f, 0o644); err != nil {
		return &Error{Op: "upload", Err: err}
	}
	return nil
}

// IsNotFound reports whether err represents a 404 from the remote.
func IsNotFound(err error) bool {
	var terr *Error
	if errors.As(err, &terr) {
		if terr.StatusCode != 0 {
			return terr.StatusCode == http.StatusNotFound
		}
		return gowebdav.IsErrNotFound(terr.Err)
	}
	return gowebdav.IsErrNotFound(err)
}
