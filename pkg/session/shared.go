// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tombee/conduit/internal/log"
	"github.com/tombee/conduit/pkg/transport"
)

// connContext is one pooled session together with its reference count and
// exclusivity lock. refs is mutated only under the registry lock; sess
// and limiter are touched only under mu.
type connContext struct {
	sess    *HTTPSession
	refs    int
	mu      sync.Mutex
	limiter *rate.Limiter
}

// Registry maps integer context keys to pooled HTTP sessions. Many
// SharedConn values referencing the same key multiplex onto one pooled
// session; their executions are serialized by the context's own mutex
// while different keys proceed fully in parallel.
//
// The registry lock guards membership and reference counts only. It is
// never held across a network call.
type Registry struct {
	mu       sync.Mutex
	contexts map[int]*connContext

	// newHandle and certSource are injectable for tests; defaults build
	// real transport handles and read the process certificate path.
	newHandle  func() transport.Handle
	certSource func() string
	logger     *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		contexts:   make(map[int]*connContext),
		newHandle:  transport.New,
		certSource: CertificateBundlePath,
		logger:     log.WithComponent(slog.Default(), "registry"),
	}
}

// DefaultRegistry is the process-wide registry used by NewShared.
var DefaultRegistry = NewRegistry()

// Connections returns the current reference count for a context key, or
// zero when the key is absent. Diagnostics and tests only.
func (r *Registry) Connections(contextID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cc, ok := r.contexts[contextID]
	if !ok {
		return 0
	}
	return cc.refs
}

// Connections reports the reference count for a key in the process-wide
// registry.
func Connections(contextID int) int {
	return DefaultRegistry.Connections(contextID)
}

// SetRateLimit attaches a rate limiter to an existing context, making
// every execution against it wait for a token first. rps <= 0 removes the
// limiter. It reports whether the context exists.
func (r *Registry) SetRateLimit(contextID int, rps float64, burst int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cc, ok := r.contexts[contextID]
	if !ok {
		return false
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if rps <= 0 {
		cc.limiter = nil
	} else {
		if burst < 1 {
			burst = 1
		}
		cc.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return true
}

// acquire binds a reference to a context key, creating the pooled session
// on first use. For an existing context the pooled session's method is
// updated and the URL re-applied (forcing the TLS verification re-check)
// under the context's own lock before the count is incremented.
func (r *Registry) acquire(contextID int, url string, meth Method) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cc, ok := r.contexts[contextID]
	if !ok {
		sess, err := newHTTPSessionWith(r.newHandle(), r.certSource, meth)
		if err != nil {
			return err
		}
		if url != "" {
			if err := sess.SetURL(url); err != nil {
				sess.Close()
				return err
			}
		}
		cc = &connContext{sess: sess}
		r.contexts[contextID] = cc
		activeContexts.Inc()
		r.logger.Debug("context created", slog.Int(log.ContextIDKey, contextID))
	} else {
		cc.mu.Lock()
		err := cc.sess.SetMethod(meth)
		if err == nil && url != "" {
			err = cc.sess.SetURL(url)
		}
		cc.mu.Unlock()
		if err != nil {
			return err
		}
	}

	r.incrRef(contextID)
	return nil
}

// incrRef increments a context's reference count. Caller holds r.mu.
func (r *Registry) incrRef(contextID int) {
	cc, ok := r.contexts[contextID]
	if !ok {
		return
	}
	cc.refs++
	contextRefs.WithLabelValues(contextLabel(contextID)).Set(float64(cc.refs))
}

// decrRef decrements a context's reference count, closing the pooled
// session and erasing the context when it reaches zero. Caller holds
// r.mu.
func (r *Registry) decrRef(contextID int) {
	cc, ok := r.contexts[contextID]
	if !ok {
		return
	}
	cc.refs--
	if cc.refs <= 0 {
		cc.sess.Close()
		delete(r.contexts, contextID)
		activeContexts.Dec()
		contextRefs.DeleteLabelValues(contextLabel(contextID))
		r.logger.Debug("context erased", slog.Int(log.ContextIDKey, contextID))
		return
	}
	contextRefs.WithLabelValues(contextLabel(contextID)).Set(float64(cc.refs))
}

// lookup returns the live context for a key, or nil. The registry lock is
// held only for the map access, never for the caller's execution.
func (r *Registry) lookup(contextID int) *connContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contexts[contextID]
}

// SharedConn is a lightweight reference into a pooled context. It carries
// its own pending request parameters (URL, method, headers, fields,
// timeout), which are replayed onto the pooled session under the
// context's lock at execute time. A SharedConn does not own a session; it
// is valid only while open and while the context exists.
//
// Duplicate with Clone or CopyFrom, never by copying the struct: the
// reference count must track the number of live references.
type SharedConn struct {
	reg     *Registry
	id      int
	open    bool
	url     string
	method  Method
	headers []Param
	fields  string
	timeout time.Duration
}

// NewShared returns a reference to the given context key in the
// process-wide registry, creating the pooled session on first use. An
// empty URL leaves the pooled session's URL untouched.
func NewShared(url string, meth Method, contextID int) (*SharedConn, error) {
	return NewSharedIn(DefaultRegistry, url, meth, contextID)
}

// NewSharedIn is NewShared against an explicit registry.
func NewSharedIn(reg *Registry, url string, meth Method, contextID int) (*SharedConn, error) {
	if reg == nil {
		reg = DefaultRegistry
	}
	if err := reg.acquire(contextID, url, meth); err != nil {
		return nil, err
	}
	return &SharedConn{
		reg:    reg,
		id:     contextID,
		open:   true,
		url:    url,
		method: meth,
	}, nil
}

// Clone returns a new open reference with the same pending parameters,
// incrementing the context's reference count.
func (c *SharedConn) Clone() *SharedConn {
	d := &SharedConn{
		reg:     c.reg,
		id:      c.id,
		open:    c.open,
		url:     c.url,
		method:  c.method,
		headers: slices.Clone(c.headers),
		fields:  c.fields,
		timeout: c.timeout,
	}
	if d.open {
		d.reg.mu.Lock()
		d.reg.incrRef(d.id)
		d.reg.mu.Unlock()
	}
	return d
}

// CopyFrom makes c an exact copy of o, adjusting reference counts so they
// keep matching the number of live references per context.
func (c *SharedConn) CopyFrom(o *SharedConn) {
	if o == nil || c == o || c.Equal(o) {
		return
	}

	if c.reg == o.reg {
		c.reg.mu.Lock()
		switch {
		case c.open != o.open:
			if o.open {
				c.reg.incrRef(o.id)
			} else {
				c.reg.decrRef(c.id)
			}
		case c.open && c.id != o.id:
			c.reg.decrRef(c.id)
			c.reg.incrRef(o.id)
		}
		c.reg.mu.Unlock()
	} else {
		if c.open {
			c.reg.mu.Lock()
			c.reg.decrRef(c.id)
			c.reg.mu.Unlock()
		}
		if o.open {
			o.reg.mu.Lock()
			o.reg.incrRef(o.id)
			o.reg.mu.Unlock()
		}
	}

	c.reg = o.reg
	c.id = o.id
	c.open = o.open
	c.url = o.url
	c.method = o.method
	c.headers = slices.Clone(o.headers)
	c.fields = o.fields
	c.timeout = o.timeout
}

// Equal reports whether both references carry identical state: same
// registry, context key, open flag, and pending parameters.
func (c *SharedConn) Equal(o *SharedConn) bool {
	if o == nil {
		return false
	}
	return c.reg == o.reg &&
		c.id == o.id &&
		c.open == o.open &&
		c.url == o.url &&
		c.method == o.method &&
		slices.Equal(c.headers, o.headers) &&
		c.fields == o.fields &&
		c.timeout == o.timeout
}

// Open reports whether the reference is live.
func (c *SharedConn) Open() bool { return c.open }

// ContextID returns the reference's context key.
func (c *SharedConn) ContextID() int { return c.id }

// Close releases the reference, erasing the pooled context when this was
// the last one. Idempotent.
func (c *SharedConn) Close() {
	if !c.open {
		return
	}
	c.reg.mu.Lock()
	c.reg.decrRef(c.id)
	c.reg.mu.Unlock()
	c.open = false
}

// SetURL updates the pending URL after validating its scheme prefix. The
// pooled session is not touched until the next execute.
func (c *SharedConn) SetURL(url string) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return &ProtocolError{URL: url}
	}
	c.url = url
	return nil
}

// URL returns the pending URL.
func (c *SharedConn) URL() string { return c.url }

// SetMethod updates the pending method.
func (c *SharedConn) SetMethod(meth Method) error {
	switch meth {
	case MethodGet, MethodPost, MethodPut, MethodDelete:
		c.method = meth
		return nil
	}
	return &MethodError{Method: meth}
}

// Method returns the pending method.
func (c *SharedConn) Method() Method { return c.method }

// SetHeaders replaces the pending header pairs.
func (c *SharedConn) SetHeaders(headers []Param) {
	c.headers = slices.Clone(headers)
}

// SetFields sets the pending url-encoded body from a raw string. Fields
// apply to the next non-GET execute and are consumed by it.
func (c *SharedConn) SetFields(fields string) {
	c.fields = fields
}

// SetFieldParams encodes the pairs and sets them as the pending body.
func (c *SharedConn) SetFieldParams(fields []Param) {
	c.fields = EncodeFields(fields)
}

// SetTimeout sets the pending request timeout.
func (c *SharedConn) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Timeout returns the pending timeout.
func (c *SharedConn) Timeout() time.Duration { return c.timeout }

// Execute performs the request, blocking until it completes. See
// ExecuteContext.
func (c *SharedConn) Execute(returnHeaders bool) (*Result, error) {
	return c.ExecuteContext(context.Background(), returnHeaders)
}

// ExecuteContext acquires the context's exclusivity lock for the full
// duration of replaying this reference's pending parameters onto the
// pooled session and performing the request. Two references sharing a
// context key never execute concurrently; references with different keys
// proceed in parallel. Pending fields are consumed whether or not the
// request succeeds.
func (c *SharedConn) ExecuteContext(ctx context.Context, returnHeaders bool) (*Result, error) {
	if !c.open {
		return nil, ErrConnClosed
	}
	cc := c.reg.lookup(c.id)
	if cc == nil {
		return nil, ErrConnClosed
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()

	label := contextLabel(c.id)
	if cc.limiter != nil && !cc.limiter.Allow() {
		rateLimitWaits.WithLabelValues(label).Inc()
		if err := cc.limiter.Wait(ctx); err != nil {
			return nil, &transport.PerformError{
				Code:    transport.CodeCancelled,
				Message: "rate limit wait cancelled",
				Cause:   err,
			}
		}
	}

	sess := cc.sess
	if c.url != "" {
		if err := sess.SetURL(c.url); err != nil {
			return nil, err
		}
	}
	if err := sess.ResetHeaders(); err != nil {
		return nil, err
	}
	if len(c.headers) > 0 {
		if err := sess.AddHeaders(c.headers); err != nil {
			return nil, err
		}
	}
	if err := sess.SetMethod(c.method); err != nil {
		return nil, err
	}
	if c.method != MethodGet && c.fields != "" {
		if err := sess.SetFields(c.fields); err != nil {
			c.fields = ""
			return nil, err
		}
	}
	c.fields = ""
	if err := sess.SetTimeout(c.timeout); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := sess.ExecuteContext(ctx, returnHeaders)
	requestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(label, c.method.String(), "error").Inc()
		return nil, err
	}
	requestsTotal.WithLabelValues(label, c.method.String(), statusClass(res.Status)).Inc()
	return res, nil
}
