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
	"io"
	"sync"
	"time"

	"github.com/tombee/conduit/pkg/transport"
)

// optionCall is one recorded SetOption invocation.
type optionCall struct {
	opt   transport.Option
	value any
}

// performWindow brackets one Perform call, for overlap assertions.
type performWindow struct {
	enter time.Time
	exit  time.Time
}

// stubHandle is an in-memory transport.Handle that records every call.
// Safe for use from multiple goroutines so serialization properties can
// be asserted.
type stubHandle struct {
	mu      sync.Mutex
	calls   []optionCall
	staged  map[transport.Option]any
	rejects map[transport.Option]error

	body       string
	headerText string
	status     int
	performErr error
	delay      time.Duration

	performs int
	windows  []performWindow
	freed    bool
}

func newStubHandle() *stubHandle {
	return &stubHandle{
		staged: make(map[transport.Option]any),
		status: 200,
	}
}

func (h *stubHandle) SetOption(opt transport.Option, value any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.freed {
		return transport.ErrFreed
	}
	if err, ok := h.rejects[opt]; ok {
		return err
	}
	h.calls = append(h.calls, optionCall{opt: opt, value: value})
	if value == nil {
		delete(h.staged, opt)
	} else {
		h.staged[opt] = value
	}
	return nil
}

func (h *stubHandle) Perform(ctx context.Context) error {
	h.mu.Lock()
	if h.freed {
		h.mu.Unlock()
		return transport.ErrFreed
	}
	enter := time.Now()
	h.performs++
	delay := h.delay
	body := h.body
	headerText := h.headerText
	performErr := h.performErr
	bodySink, _ := h.staged[transport.OptionWriteSink].(io.Writer)
	headSink, _ := h.staged[transport.OptionHeaderSink].(io.Writer)
	h.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if performErr == nil {
		if headSink != nil && headerText != "" {
			io.WriteString(headSink, headerText)
		}
		if bodySink != nil && body != "" {
			io.WriteString(bodySink, body)
		}
	}

	h.mu.Lock()
	h.windows = append(h.windows, performWindow{enter: enter, exit: time.Now()})
	h.mu.Unlock()
	return performErr
}

func (h *stubHandle) ResponseCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *stubHandle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.staged = make(map[transport.Option]any)
}

func (h *stubHandle) Free() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.freed = true
}

// value returns the currently staged value for an option.
func (h *stubHandle) value(opt transport.Option) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.staged[opt]
	return v, ok
}

// setCount returns how many times an option has been set.
func (h *stubHandle) setCount(opt transport.Option) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		if c.opt == opt {
			n++
		}
	}
	return n
}

func (h *stubHandle) performCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.performs
}

func (h *stubHandle) isFreed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.freed
}

func (h *stubHandle) performWindows() []performWindow {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]performWindow, len(h.windows))
	copy(out, h.windows)
	return out
}
