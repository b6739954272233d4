package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortPingInterval(t *testing.T) {
	t.Helper()
	orig := pingInterval
	pingInterval = time.Millisecond
	t.Cleanup(func() { pingInterval = orig })
}

func TestPingCount(t *testing.T) {
	env := setupTestEnv(t)
	shortPingInterval(t)

	code, stdout, stderr := env.exec(t, "", "ping", "--count", "3")
	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.Equal(t, 3, strings.Count(stdout, "Reply from "+env.server.URL()))
	assert.Contains(t, stdout, "status_code=200, time=")
	assert.Contains(t, stdout, "3 sent, 3 received")
}

func TestPingJSON(t *testing.T) {
	env := setupTestEnv(t)
	shortPingInterval(t)

	code, stdout, _ := env.exec(t, "", "--json", "ping", "-c", "2")
	require.Equal(t, 0, code)

	var result PingResult
	envl := decodeEnvelope(t, stdout, &result)
	assert.True(t, envl.Success)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 2, result.Received)
	require.Len(t, result.Replies, 2)
	assert.Equal(t, 1, result.Replies[1].Seq)
	assert.Equal(t, 200, result.Replies[0].Status)
}

func TestPingTimeoutStops(t *testing.T) {
	env := setupTestEnv(t)
	orig := pingInterval
	pingInterval = 300 * time.Millisecond
	t.Cleanup(func() { pingInterval = orig })

	start := time.Now()
	code, stdout, _ := env.exec(t, "", "ping", "--timeout", "1")
	assert.Equal(t, 0, code)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Contains(t, stdout, "received")
}

func TestPingUnauthorizedFails(t *testing.T) {
	env := setupTestEnv(t)
	shortPingInterval(t)
	env.server.Token = "another-token"

	code, stdout, stderr := env.exec(t, "", "ping", "-c", "2")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "status_code=401, error")
	assert.Contains(t, stdout, "2 sent, 0 received")
	assert.Contains(t, stderr, "No reply from")
}

func TestPingRejectsNegativeValues(t *testing.T) {
	env := setupTestEnv(t)

	code, _, stderr := env.exec(t, "", "ping", "--count=-1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "can't be negative")
}
