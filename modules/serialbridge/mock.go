// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package serialbridge

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// MockController implements Port for testing. It answers every line written
// to it with the result of Respond; an empty answer sends nothing back. Read
// blocks until an answer is pending or the port is closed, like a serial
// line.
type MockController struct {
	// Respond computes the reply to a command line. Nil answers "ok".
	Respond func(line string) string

	mu      sync.Mutex
	lines   []string
	pending bytes.Buffer

	ready     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewMockController creates a controller answering with respond.
func NewMockController(respond func(line string) string) *MockController {
	return &MockController{
		Respond: respond,
		ready:   make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

func (m *MockController) Write(p []byte) (int, error) {
	select {
	case <-m.closed:
		return 0, io.ErrClosedPipe
	default:
	}

	m.mu.Lock()
	line := strings.TrimSuffix(string(p), "\n")
	m.lines = append(m.lines, line)
	reply := "ok"
	if m.Respond != nil {
		reply = m.Respond(line)
	}
	if reply != "" {
		m.pending.WriteString(reply + "\n")
	}
	m.mu.Unlock()

	if reply != "" {
		select {
		case m.ready <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

func (m *MockController) Read(p []byte) (int, error) {
	for {
		m.mu.Lock()
		if m.pending.Len() > 0 {
			n, _ := m.pending.Read(p)
			m.mu.Unlock()
			return n, nil
		}
		m.mu.Unlock()

		select {
		case <-m.ready:
		case <-m.closed:
			return 0, io.EOF
		}
	}
}

// Close hangs up the line. Pending reads return io.EOF.
func (m *MockController) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

// Lines returns a copy of the command lines received so far.
func (m *MockController) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lines...)
}

// Closed reports whether Close was called.
func (m *MockController) Closed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}
