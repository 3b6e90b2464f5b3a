package mode

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uart-assist/internal/model"
	"uart-assist/internal/observe"
	"uart-assist/internal/protocol"
)

type recordingSink struct {
	mu     sync.Mutex
	events []observe.Event
	hook   func(observe.Event)
}

func (s *recordingSink) Observe(event observe.Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(event)
	}
}

func (s *recordingSink) count(kind observe.EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (s *recordingSink) lines(kind observe.EventKind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e.Line)
		}
	}
	return out
}

func newLoopback(window time.Duration) *Loopback {
	l := NewLoopback(zap.NewNop())
	l.window = window
	return l
}

func newReceive(window time.Duration) *Receive {
	r := NewReceive(zap.NewNop())
	r.window = window
	return r
}

func TestLoopback_Pass(t *testing.T) {
	port := protocol.NewTestablePort()
	port.Echo = true
	sink := &recordingSink{}

	outcome, err := newLoopback(time.Second).Run(context.Background(), port, Params{
		Payload: "hello",
		Format:  model.FormatASCII,
		Sink:    sink,
	})
	require.NoError(t, err)
	assert.False(t, outcome.Cancelled)
	assert.Equal(t, 1, outcome.Stats.Sent)
	assert.Equal(t, 5, outcome.Stats.SentBytes)
	assert.Equal(t, 1, outcome.Stats.Received)
	assert.Equal(t, 5, outcome.Stats.ReceivedBytes)
	assert.Equal(t, 1, port.Flushes)
	assert.Equal(t, 1, port.WriteCount())
	assert.Equal(t, []string{"Loopback test PASSED (5 bytes)"}, sink.lines(observe.EventResult))
}

func TestLoopback_HexPayload(t *testing.T) {
	port := protocol.NewTestablePort()
	port.Echo = true

	outcome, err := newLoopback(time.Second).Run(context.Background(), port, Params{
		Payload: "48656c6C6f",
		Format:  model.FormatHex,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("Hello")}, port.Written())
	assert.Equal(t, 5, outcome.Stats.ReceivedBytes)
}

func TestLoopback_LongHexPayloadOneLinePerEvent(t *testing.T) {
	port := protocol.NewTestablePort()
	port.Echo = true
	sink := &recordingSink{}

	_, err := newLoopback(time.Second).Run(context.Background(), port, Params{
		Payload: strings.Repeat("A5", 20),
		Format:  model.FormatHex,
		Sink:    sink,
	})
	require.NoError(t, err)

	send := sink.lines(observe.EventProgress)
	recv := sink.lines(observe.EventData)
	require.Len(t, send, 1)
	require.Len(t, recv, 1)
	want := strings.TrimSpace(strings.Repeat("A5 ", 20))
	assert.Equal(t, "Send : "+want+" (20 bytes)", send[0])
	assert.Equal(t, "Recv : "+want+" (20 bytes)", recv[0])
}

func TestLoopback_Mismatch(t *testing.T) {
	tests := []struct {
		name      string
		transform func([]byte) []byte
		message   string
	}{
		{
			name: "content differs",
			transform: func(b []byte) []byte {
				b[2] ^= 0xFF
				return b
			},
			message: "data mismatch",
		},
		{
			name: "length differs",
			transform: func(b []byte) []byte {
				return b[:3]
			},
			message: "data length mismatch: sent 5 bytes, received 3 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := protocol.NewTestablePort()
			port.Echo = true
			port.EchoTransform = tt.transform
			sink := &recordingSink{}

			_, err := newLoopback(time.Second).Run(context.Background(), port, Params{
				Payload: "12345",
				Format:  model.FormatASCII,
				Sink:    sink,
			})
			require.Error(t, err)

			var mismatch *model.MismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, []byte("12345"), mismatch.Sent)
			assert.NotEqual(t, mismatch.Sent, mismatch.Received)
			assert.Contains(t, err.Error(), tt.message)
			assert.Equal(t, 3, sink.count(observe.EventError))
		})
	}
}

func TestLoopback_Timeout(t *testing.T) {
	port := protocol.NewTestablePort()

	start := time.Now()
	outcome, err := NewLoopback(zap.NewNop()).Run(context.Background(), port, Params{
		Payload: "12345",
		Format:  model.FormatASCII,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), ReceiveWindow)
	assert.Equal(t, 1, port.WriteCount())
	assert.Zero(t, outcome.Stats.Received)
}

func TestLoopback_CancelledWhileWaiting(t *testing.T) {
	port := protocol.NewTestablePort()
	ctx, cancel := context.WithCancel(context.Background())
	port.OnWrite = func(int) { cancel() }

	outcome, err := newLoopback(5*time.Second).Run(ctx, port, Params{
		Payload: "abc",
		Format:  model.FormatASCII,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Cancelled)
	assert.Equal(t, 1, outcome.Stats.Sent)
}

func TestLoopback_ValidationBeforeIO(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		format  model.OutputFormat
		want    error
	}{
		{"odd hex", "ABC", model.FormatHex, model.ErrInvalidHex},
		{"non hex", "ZZ", model.FormatHex, model.ErrInvalidHex},
		{"empty ascii", "", model.FormatASCII, model.ErrEmptyPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := protocol.NewTestablePort()

			_, err := newLoopback(time.Second).Run(context.Background(), port, Params{
				Payload: tt.payload,
				Format:  tt.format,
			})
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, port.Flushes)
			assert.Zero(t, port.WriteCount())
		})
	}
}

func TestLoopback_ShortWrite(t *testing.T) {
	port := protocol.NewTestablePort()
	port.ShortWrite = 2

	_, err := newLoopback(time.Second).Run(context.Background(), port, Params{
		Payload: "12345",
		Format:  model.FormatASCII,
	})
	assert.ErrorIs(t, err, model.ErrDevice)
	assert.Contains(t, err.Error(), "short write: 2 of 5 bytes")
}

func TestSend_CountAndInterval(t *testing.T) {
	port := protocol.NewTestablePort()
	sink := &recordingSink{}

	outcome, err := NewSend(zap.NewNop()).Run(context.Background(), port, Params{
		Payload:  "123456",
		Format:   model.FormatASCII,
		Interval: 100 * time.Millisecond,
		Count:    3,
		Sink:     sink,
	})
	require.NoError(t, err)
	assert.False(t, outcome.Cancelled)
	assert.Equal(t, 3, outcome.Stats.Sent)
	assert.Equal(t, 3*6, outcome.Stats.SentBytes)
	assert.Equal(t, 3, port.WriteCount())
	assert.Equal(t, 3, sink.count(observe.EventProgress))

	times := port.WriteTimestamps()
	require.Len(t, times, 3)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), 100*time.Millisecond)
	}
	assert.Equal(t, []string{"Total sent: 3 packets, 18 bytes"}, sink.lines(observe.EventResult))
}

func TestSend_UnboundedCancelled(t *testing.T) {
	port := protocol.NewTestablePort()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	port.OnWrite = func(count int) {
		if count == 2 {
			cancel()
		}
	}

	start := time.Now()
	outcome, err := NewSend(zap.NewNop()).Run(ctx, port, Params{
		Payload:  "AA55",
		Format:   model.FormatHex,
		Interval: 5 * time.Second,
		Count:    0,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Cancelled)
	assert.Equal(t, 2, outcome.Stats.Sent)
	assert.Equal(t, 4, outcome.Stats.SentBytes)
	assert.Equal(t, 2, port.WriteCount())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSend_CancelledDuringWrite(t *testing.T) {
	port := protocol.NewTestablePort()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	port.BeforeWrite = func(attempt int) {
		if attempt == 3 {
			cancel()
		}
	}

	outcome, err := NewSend(zap.NewNop()).Run(ctx, port, Params{
		Payload:  "AA55",
		Format:   model.FormatHex,
		Interval: MinInterval,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Cancelled)
	assert.Equal(t, 3, outcome.Stats.Sent)
	assert.Equal(t, 3, port.WriteCount())
}

func TestSend_WriteFailure(t *testing.T) {
	port := protocol.NewTestablePort()
	port.WriteError = errors.New("input/output error")

	outcome, err := NewSend(zap.NewNop()).Run(context.Background(), port, Params{
		Payload:  "x",
		Format:   model.FormatASCII,
		Interval: time.Millisecond,
		Count:    5,
	})
	assert.ErrorIs(t, err, model.ErrDevice)
	assert.Contains(t, err.Error(), "input/output error")
	assert.Zero(t, outcome.Stats.Sent)
}

func TestSend_InvalidParams(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		count    int
	}{
		{"zero interval", 0, 1},
		{"interval too long", 11 * time.Second, 1},
		{"negative count", time.Second, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := protocol.NewTestablePort()
			_, err := NewSend(zap.NewNop()).Run(context.Background(), port, Params{
				Payload:  "x",
				Format:   model.FormatASCII,
				Interval: tt.interval,
				Count:    tt.count,
			})
			assert.ErrorIs(t, err, model.ErrConfig)
			assert.Zero(t, port.WriteCount())
		})
	}
}

func TestReceive_NoDataThenCancel(t *testing.T) {
	port := protocol.NewTestablePort()
	sink := &recordingSink{}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	outcome, err := newReceive(50*time.Millisecond).Run(ctx, port, Params{
		Format: model.FormatASCII,
		Sink:   sink,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Cancelled)
	assert.Zero(t, outcome.Stats.Received)
	assert.Zero(t, outcome.Stats.ReceivedBytes)
	assert.GreaterOrEqual(t, sink.count(observe.EventWaiting), 1)
	assert.Equal(t, []string{"Total received: 0 packets, 0 bytes"}, sink.lines(observe.EventResult))
}

func TestReceive_Data(t *testing.T) {
	tests := []struct {
		name   string
		format model.OutputFormat
		first  string
	}{
		{"ascii", model.FormatASCII, `Recv [1] : "hi\r\n" (4 bytes, total: 4 bytes)`},
		{"hex", model.FormatHex, "Recv [1] : 4 bytes (total: 4 bytes)\n68 69 0D 0A \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := protocol.NewTestablePort()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Data is queued on the first empty window, after the initial flush
			sink := &recordingSink{}
			sink.hook = func(e observe.Event) {
				switch {
				case e.Kind == observe.EventWaiting && e.Stats.Received == 0:
					port.AddReadData([]byte("hi\r\n"))
					port.AddReadData([]byte{0x00, 0xFF})
				case e.Kind == observe.EventData && e.Stats.Received == 2:
					cancel()
				}
			}

			outcome, err := newReceive(30*time.Millisecond).Run(ctx, port, Params{
				Format: tt.format,
				Sink:   sink,
			})
			require.NoError(t, err)
			assert.True(t, outcome.Cancelled)
			assert.Equal(t, 2, outcome.Stats.Received)
			assert.Equal(t, 6, outcome.Stats.ReceivedBytes)

			lines := sink.lines(observe.EventData)
			require.Len(t, lines, 2)
			assert.Equal(t, tt.first, lines[0])
		})
	}
}

func TestReceive_ReadFailure(t *testing.T) {
	port := protocol.NewTestablePort()
	port.ReadError = errors.New("device disconnected")

	_, err := newReceive(time.Second).Run(context.Background(), port, Params{Format: model.FormatASCII})
	assert.ErrorIs(t, err, model.ErrDevice)
}

func TestReceive_FlushFailure(t *testing.T) {
	port := protocol.NewTestablePort()
	port.FlushError = errors.New("bad file descriptor")

	_, err := newReceive(time.Second).Run(context.Background(), port, Params{Format: model.FormatASCII})
	assert.ErrorIs(t, err, model.ErrDevice)
	assert.Zero(t, port.ReadCalls)
}

func scriptGroup() *model.ScriptGroup {
	return &model.ScriptGroup{
		GroupName:  "smoke",
		CycleCount: 2,
		SendList: []model.ScriptItem{
			{Number: 1, HexData: "A1", Delay: 1, Enable: true},
			{Number: 2, HexData: "B2B2", Delay: 1, Enable: false},
			{Number: 3, HexData: "C3C3C3", Delay: 1, Enable: true},
		},
	}
}

func TestFile_SkipsDisabledItems(t *testing.T) {
	port := protocol.NewTestablePort()
	sink := &recordingSink{}

	outcome, err := NewFile(zap.NewNop()).Run(context.Background(), port, Params{
		Script: scriptGroup(),
		Sink:   sink,
	})
	require.NoError(t, err)
	assert.False(t, outcome.Cancelled)
	assert.Equal(t, 4, outcome.Stats.Sent)
	assert.Equal(t, 8, outcome.Stats.SentBytes)

	a := []byte{0xA1}
	c := []byte{0xC3, 0xC3, 0xC3}
	assert.Equal(t, [][]byte{a, c, a, c}, port.Written())

	progress := sink.lines(observe.EventProgress)
	require.Len(t, progress, 4)
	assert.Equal(t, "[cycle 1/2] #1 : hex=A1 (1 bytes), delay=1ms", progress[0])
	assert.True(t, strings.HasPrefix(progress[3], "[cycle 2/2] #3 : hex=C3 C3 C3"))
}

func TestFile_UsesDecodedPayload(t *testing.T) {
	group := scriptGroup()
	group.CycleCount = 1
	group.SendList[0].Payload = []byte{0x01, 0x02}
	port := protocol.NewTestablePort()

	_, err := NewFile(zap.NewNop()).Run(context.Background(), port, Params{Script: group})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, port.Written()[0])
}

func TestFile_SendFailureAborts(t *testing.T) {
	port := protocol.NewTestablePort()
	port.OnWrite = func(count int) {
		if count == 1 {
			port.WriteError = errors.New("input/output error")
		}
	}

	outcome, err := NewFile(zap.NewNop()).Run(context.Background(), port, Params{Script: scriptGroup()})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDevice)
	assert.Contains(t, err.Error(), "item #3 (cycle 1)")
	assert.Equal(t, 1, outcome.Stats.Sent)
}

func TestFile_Cancelled(t *testing.T) {
	port := protocol.NewTestablePort()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := NewFile(zap.NewNop()).Run(ctx, port, Params{Script: scriptGroup()})
	require.NoError(t, err)
	assert.True(t, outcome.Cancelled)
	assert.Zero(t, port.WriteCount())
}

func TestFile_CancelledDuringWrite(t *testing.T) {
	port := protocol.NewTestablePort()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	port.BeforeWrite = func(attempt int) {
		if attempt == 2 {
			cancel()
		}
	}

	outcome, err := NewFile(zap.NewNop()).Run(ctx, port, Params{Script: scriptGroup()})
	require.NoError(t, err)
	assert.True(t, outcome.Cancelled)
	assert.Equal(t, 2, outcome.Stats.Sent)
	assert.Equal(t, [][]byte{{0xA1}, {0xC3, 0xC3, 0xC3}}, port.Written())
}

func TestFile_InvalidScript(t *testing.T) {
	tests := []struct {
		name  string
		group *model.ScriptGroup
	}{
		{"missing", nil},
		{"no items", &model.ScriptGroup{GroupName: "g", CycleCount: 1}},
		{"bad hex", &model.ScriptGroup{GroupName: "g", CycleCount: 1, SendList: []model.ScriptItem{
			{Number: 1, HexData: "XYZ", Delay: 1, Enable: true},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := protocol.NewTestablePort()
			_, err := NewFile(zap.NewNop()).Run(context.Background(), port, Params{Script: tt.group})
			assert.ErrorIs(t, err, model.ErrScriptValidation)
			assert.Zero(t, port.Flushes)
		})
	}
}

func TestRegistry(t *testing.T) {
	registry := NewDefaultRegistry(zap.NewNop())

	assert.Equal(t, []model.TestMode{
		model.ModeFile, model.ModeLoopback, model.ModeReceive, model.ModeSend,
	}, registry.ListModes())

	for _, name := range registry.ListModes() {
		m, err := registry.Create(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.Name())
		assert.True(t, registry.IsSupported(name))
	}

	_, err := registry.Create("bogus")
	assert.ErrorIs(t, err, model.ErrConfig)
	assert.False(t, registry.IsSupported("bogus"))
}
