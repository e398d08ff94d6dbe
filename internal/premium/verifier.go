// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package premium checks usernames against the external identity authority.
//
// A name is premium when the authority knows it. Positive answers are cached
// for the lifetime of the process; negative and inconclusive answers are not,
// because an account can be purchased later. Inconclusive answers (timeouts,
// transport errors, unexpected statuses) resolve to Unknown, which callers
// must treat like Premium.
package premium

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Default authority settings.
const (
	DefaultBaseURL        = "https://api.mojang.com"
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 5 * time.Second
)

// lookupPath is the profile lookup endpoint relative to the base URL.
const lookupPath = "/users/profiles/minecraft/"

// Result is the outcome of a verification.
type Result int

// Verification results.
const (
	Unknown Result = iota
	Premium
	NotPremium
)

// String returns the metric/log label for the result.
func (r Result) String() string {
	switch r {
	case Premium:
		return "premium"
	case NotPremium:
		return "not_premium"
	default:
		return "unknown"
	}
}

// Config holds the authority endpoint and its timeouts.
type Config struct {
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the logger used for inconclusive lookups.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client built from Config.
func WithHTTPClient(client *http.Client) Option {
	return func(v *Verifier) {
		v.client = client
	}
}

// WithNameCache shares an existing premium name cache.
func WithNameCache(names *NameCache) Option {
	return func(v *Verifier) {
		v.names = names
	}
}

// WithMetrics records lookup outcomes.
func WithMetrics(m *Metrics) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// Verifier resolves usernames to a Result.
type Verifier struct {
	baseURL string
	client  *http.Client
	names   *NameCache
	group   singleflight.Group
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// NewVerifier creates a Verifier. Zero timeouts and an empty base URL fall
// back to the defaults.
func NewVerifier(cfg Config, opts ...Option) (*Verifier, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, oops.Code("PREMIUM_INVALID_BASE_URL").With("base_url", cfg.BaseURL).Wrap(err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, oops.Code("PREMIUM_INVALID_BASE_URL").
			With("base_url", cfg.BaseURL).
			Errorf("base url must use http or https")
	}

	v := &Verifier{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  newHTTPClient(cfg),
		names:   NewNameCache(),
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/authgate/authgate/internal/premium"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// newHTTPClient bounds the dial (connect) and the wait for response headers
// (read) separately; the client timeout caps the whole exchange.
func newHTTPClient(cfg Config) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
	}
}

// Names returns the premium name cache.
func (v *Verifier) Names() *NameCache {
	return v.names
}

// Verify resolves username against the authority.
//
// Invalid names are NotPremium and cached names are Premium without any I/O.
// Concurrent calls for the same name share one request; each caller waits for
// the shared answer or its own context, whichever comes first.
func (v *Verifier) Verify(ctx context.Context, username string) Result {
	name := Normalize(username)
	if !ValidUsername(name) {
		return NotPremium
	}
	if v.names.Contains(name) {
		v.metrics.recordCacheHit()
		return Premium
	}

	// The shared lookup must outlive any single caller's cancellation.
	lookupCtx := context.WithoutCancel(ctx)
	ch := v.group.DoChan(name, func() (any, error) {
		return v.lookup(lookupCtx, name), nil
	})

	select {
	case res := <-ch:
		r, _ := res.Val.(Result)
		return r
	case <-ctx.Done():
		v.logger.WarnContext(ctx, "premium verification abandoned, failing open",
			"username", name,
			"cause", ctx.Err(),
		)
		return Unknown
	}
}

// lookup issues the single authority request for a valid, uncached name.
func (v *Verifier) lookup(ctx context.Context, name string) Result {
	ctx, span := v.tracer.Start(ctx, "premium.lookup",
		trace.WithAttributes(attribute.String("username", name)))
	defer span.End()

	result := v.doLookup(ctx, name)
	span.SetAttributes(attribute.String("result", result.String()))
	v.metrics.recordLookup(result)

	if result == Premium {
		v.names.Add(name)
	}
	return result
}

func (v *Verifier) doLookup(ctx context.Context, name string) Result {
	endpoint := v.baseURL + lookupPath + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		v.logUnknown(ctx, name, "build request", err)
		return Unknown
	}

	resp, err := v.client.Do(req)
	if err != nil {
		v.logUnknown(ctx, name, "request", err)
		return Unknown
	}
	defer func() {
		//nolint:errcheck // draining lets the transport reuse the connection
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		if closeErr := resp.Body.Close(); closeErr != nil {
			v.logger.DebugContext(ctx, "error closing authority response body", "error", closeErr)
		}
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		return Premium
	case http.StatusNoContent:
		return NotPremium
	default:
		v.logUnknown(ctx, name, "unexpected status",
			oops.Code("PREMIUM_UNEXPECTED_STATUS").
				With("status", resp.StatusCode).
				Errorf("authority responded %d", resp.StatusCode))
		return Unknown
	}
}

func (v *Verifier) logUnknown(ctx context.Context, name, stage string, err error) {
	v.logger.WarnContext(ctx, "premium verification inconclusive, failing open",
		"username", name,
		"stage", stage,
		"error", err,
	)
}
