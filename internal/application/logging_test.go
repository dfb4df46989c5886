package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lab-reservations/internal/audit"
	"github.com/example/lab-reservations/internal/lock"
	"github.com/example/lab-reservations/internal/logging"
	"github.com/example/lab-reservations/internal/persistence"
	"github.com/example/lab-reservations/internal/scheduler"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Same(t, custom, defaultLogger(custom))
	assert.Same(t, slog.Default(), defaultLogger(nil))
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, "not_found"},
		{fmt.Errorf("get: %w", persistence.ErrNotFound), "not_found"},
		{&scheduler.ConflictError{ReservationIDs: []string{"a"}}, "conflict"},
		{&scheduler.InvalidFilterError{Reasons: []string{"owner is required"}}, "invalid_filter"},
		{&audit.ChainError{Reason: "content digest mismatch"}, "chain_broken"},
		{fmt.Errorf("record audit: %w", audit.ErrDuplicateRecord), "duplicate_record"},
		{lock.ErrLockTimeout, "lock_timeout"},
		{fieldError("date", "bad"), "validation"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), "%v", tt.err)
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctxLogger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := logging.ContextWithLogger(context.Background(), ctxLogger)

	base := slog.New(slog.NewJSONHandler(io.Discard, nil))
	serviceLogger(ctx, base, "ReservationService", "Create", "room_id", "r1").InfoContext(ctx, "hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ReservationService", entry["service"])
	assert.Equal(t, "Create", entry["operation"])
	assert.Equal(t, "r1", entry["room_id"])
}

func TestLogFailureLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err   error
		level string
	}{
		{&scheduler.ConflictError{}, "WARN"},
		{fieldError("subject", "required"), "WARN"},
		{ErrNotFound, "WARN"},
		{errors.New("disk full"), "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		logFailure(context.Background(), logger, "failed", tt.err)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, tt.level, entry["level"])
		assert.Equal(t, ErrorKind(tt.err), entry["error_kind"])
	}
}
