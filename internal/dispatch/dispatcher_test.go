package dispatch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/pkts2send/internal/monitoring"
	"github.com/banshee-data/pkts2send/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	seen []string
	err  error
}

func (o *recordingObserver) Observe(hex string) error {
	o.seen = append(o.seen, hex)
	return o.err
}

func muteLogs(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	original := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, format)
	})
	t.Cleanup(func() { monitoring.Logf = original })
	return &lines
}

func TestDispatch_InvokesSenderWithArgs(t *testing.T) {
	builder := NewMockCommandBuilder()
	var log bytes.Buffer
	d := New(Options{
		SenderPath: "./raw_send",
		SenderArgs: "eth0",
		Log:        &log,
		Builder:    builder,
	})

	require.NoError(t, d.Dispatch(context.Background(), "aabbccddeeff"))
	require.NoError(t, d.Dispatch(context.Background(), "1122"))

	require.Len(t, builder.Commands, 2)
	assert.Equal(t, MockBuiltCommand{Name: "./raw_send", Args: []string{"eth0", "aabbccddeeff"}}, builder.Commands[0])
	assert.Equal(t, []string{"eth0", "1122"}, builder.LastCommand().Args)
	assert.Equal(t, "./raw_send eth0 aabbccddeeff\n./raw_send eth0 1122\n", log.String())
	assert.Equal(t, 2, d.Count())
}

func TestDispatch_RunsEachBuiltCommandOnce(t *testing.T) {
	var executors []*MockCommandExecutor
	builder := NewMockCommandBuilder()
	builder.ExecutorFactory = func(string, []string) *MockCommandExecutor {
		e := &MockCommandExecutor{}
		executors = append(executors, e)
		return e
	}
	d := New(Options{SenderPath: "./raw_send", SenderArgs: "eth0", Builder: builder})

	require.NoError(t, d.Dispatch(context.Background(), "aa"))
	require.NoError(t, d.Dispatch(context.Background(), "bb"))

	require.Len(t, executors, 2)
	for i, e := range executors {
		assert.True(t, e.RunCalled, "executor %d not run", i)
	}
}

func TestDispatch_SenderArgsStayOneArgument(t *testing.T) {
	builder := NewMockCommandBuilder()
	d := New(Options{SenderPath: "/usr/local/bin/raw_send", SenderArgs: "-c eth1", Builder: builder})

	require.NoError(t, d.Dispatch(context.Background(), "00"))
	assert.Equal(t, []string{"-c eth1", "00"}, builder.LastCommand().Args)
}

func TestDispatch_NoLog(t *testing.T) {
	builder := NewMockCommandBuilder()
	d := New(Options{SenderPath: "./raw_send", SenderArgs: "eth0", Builder: builder})

	require.NoError(t, d.Dispatch(context.Background(), "aa"))
	assert.Len(t, builder.Commands, 1)
}

func TestDispatch_LogWrittenBeforeSpawn(t *testing.T) {
	var log bytes.Buffer
	builder := NewMockCommandBuilder()
	builder.ExecutorFactory = func(name string, args []string) *MockCommandExecutor {
		// The log line must already be present when the sender starts.
		assert.Contains(t, log.String(), args[1])
		return &MockCommandExecutor{}
	}
	d := New(Options{SenderPath: "./raw_send", SenderArgs: "eth0", Log: &log, Builder: builder})

	require.NoError(t, d.Dispatch(context.Background(), "cafe"))
}

func TestDispatch_DryRun(t *testing.T) {
	builder := NewMockCommandBuilder()
	var log bytes.Buffer
	obs := &recordingObserver{}
	d := New(Options{
		SenderPath: "./raw_send",
		SenderArgs: "eth0",
		Log:        &log,
		Builder:    builder,
		DryRun:     true,
		Observer:   obs,
	})

	require.NoError(t, d.Dispatch(context.Background(), "beef"))

	assert.Empty(t, builder.Commands)
	assert.Equal(t, "./raw_send eth0 beef\n", log.String())
	assert.Equal(t, []string{"beef"}, obs.seen)
	assert.Equal(t, 1, d.Count())
}

func TestDispatch_NonZeroExitIgnored(t *testing.T) {
	logs := muteLogs(t)
	builder := NewMockCommandBuilder()
	builder.ExecutorFactory = func(string, []string) *MockCommandExecutor {
		return &MockCommandExecutor{Err: &exec.ExitError{}}
	}
	d := New(Options{SenderPath: "./raw_send", SenderArgs: "eth0", Builder: builder})

	require.NoError(t, d.Dispatch(context.Background(), "aa"))
	assert.Equal(t, 1, d.Count())
	assert.Len(t, *logs, 1)
}

func TestDispatch_SpawnFailureIsFatal(t *testing.T) {
	boom := errors.New("exec format error")
	builder := NewMockCommandBuilder()
	builder.ExecutorFactory = func(string, []string) *MockCommandExecutor {
		return &MockCommandExecutor{Err: boom}
	}
	obs := &recordingObserver{}
	d := New(Options{SenderPath: "./raw_send", SenderArgs: "eth0", Builder: builder, Observer: obs})

	err := d.Dispatch(context.Background(), "aa")

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "./raw_send", spawnErr.Path)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, d.Count())
	assert.Empty(t, obs.seen)
}

func TestDispatch_LogWriteFailure(t *testing.T) {
	builder := NewMockCommandBuilder()
	d := New(Options{SenderPath: "./raw_send", Log: failingWriter{}, Builder: builder})

	err := d.Dispatch(context.Background(), "aa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invocation log")
	assert.Empty(t, builder.Commands)
}

func TestDispatch_DelayBetweenPackets(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	d := New(Options{
		SenderPath: "./raw_send",
		Builder:    NewMockCommandBuilder(),
		Clock:      clock,
		Delay:      20 * time.Millisecond,
	})

	for _, pkt := range []string{"aa", "bb", "cc"} {
		require.NoError(t, d.Dispatch(context.Background(), pkt))
	}

	// No wait before the first packet.
	assert.Equal(t, []time.Duration{20 * time.Millisecond, 20 * time.Millisecond}, clock.Sleeps())
}

func TestDispatch_CancelledDuringDelay(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	builder := NewMockCommandBuilder()
	d := New(Options{SenderPath: "./raw_send", Builder: builder, Clock: clock, Delay: time.Second})

	require.NoError(t, d.Dispatch(context.Background(), "aa"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Dispatch(ctx, "bb"), context.Canceled)
	assert.Len(t, builder.Commands, 1)
}

func TestDispatch_ObserverErrorIsWarning(t *testing.T) {
	logs := muteLogs(t)
	obs := &recordingObserver{err: errors.New("odd length")}
	d := New(Options{SenderPath: "./raw_send", Builder: NewMockCommandBuilder(), Observer: obs})

	require.NoError(t, d.Dispatch(context.Background(), "abc"))
	assert.Equal(t, []string{"abc"}, obs.seen)
	assert.Len(t, *logs, 1)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw_send")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestDispatch_RealSender(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sent.txt")
	sender := writeScript(t, `echo "$1|$2" >> "`+out+`"`)

	d := New(Options{SenderPath: sender, SenderArgs: "eth0"})
	require.NoError(t, d.Dispatch(context.Background(), "aabb"))
	require.NoError(t, d.Dispatch(context.Background(), "ccdd"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth0|aabb", "eth0|ccdd"}, strings.Fields(string(data)))
}

func TestDispatch_RealSenderNonZeroExit(t *testing.T) {
	muteLogs(t)
	sender := writeScript(t, "exit 3")

	d := New(Options{SenderPath: sender, SenderArgs: "eth0"})
	assert.NoError(t, d.Dispatch(context.Background(), "aabb"))
}

func TestDispatch_RealSenderMissing(t *testing.T) {
	d := New(Options{SenderPath: filepath.Join(t.TempDir(), "missing"), SenderArgs: "eth0"})

	err := d.Dispatch(context.Background(), "aabb")
	var spawnErr *SpawnError
	assert.ErrorAs(t, err, &spawnErr)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }
