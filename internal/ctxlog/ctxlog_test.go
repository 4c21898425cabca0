// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_ReturnsEmbeddedLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
}

func TestFromContext_PanicsWithoutLogger(t *testing.T) {
	assert.Panics(t, func() { FromContext(context.Background()) })
}

func TestWith_AddsAttributes(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	ctx := With(WithLogger(context.Background(), logger), "run_id", "abc")

	FromContext(ctx).Info("Phase started.", "phase", "prefill")

	out := buf.String()
	require.Contains(t, out, "run_id=abc")
	require.Contains(t, out, "phase=prefill")
}
