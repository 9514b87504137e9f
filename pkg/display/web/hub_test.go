package web

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/emulator"
)

type fakeController struct {
	mu     sync.Mutex
	input  types.ButtonMask
	status emulator.Status
	inputs chan types.ButtonMask
}

func newFakeController() *fakeController {
	return &fakeController{status: emulator.Running, inputs: make(chan types.ButtonMask, 8)}
}

func (f *fakeController) SetInput(mask types.ButtonMask) {
	f.mu.Lock()
	f.input = mask
	f.mu.Unlock()
	f.inputs <- mask
}

func (f *fakeController) Pause()  { f.setStatus(emulator.Paused) }
func (f *fakeController) Resume() { f.setStatus(emulator.Running) }

func (f *fakeController) setStatus(s emulator.Status) {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
}

func (f *fakeController) Status() emulator.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) Execute(_ context.Context, p emulator.CommandPacket) emulator.ResponsePacket {
	switch p.Command {
	case emulator.CommandPause:
		f.Pause()
	case emulator.CommandResume:
		f.Resume()
	default:
		return emulator.ResponsePacket{Command: p.Command, Error: emulator.ErrUnknownCommand}
	}
	return emulator.ResponsePacket{Command: p.Command}
}

func solidFrame(v byte) emulator.Frame {
	return emulator.Frame{Pixels: bytes.Repeat([]byte{v}, ppu.ScreenWidth*ppu.ScreenHeight*3)}
}

func startServer(t *testing.T, ctrl emulator.Controller, opts ...Opt) (*Server, *websocket.Conn) {
	t.Helper()
	srv := New(ctrl, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Run(ctx)
		close(done)
	}()

	ts := httptest.NewServer(srv)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
		ts.Close()
	})
	return srv, conn
}

func read(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	return msg
}

func decodeFrame(t *testing.T, msg []byte) (flags uint8, index int, rgba []byte) {
	t.Helper()
	require.GreaterOrEqual(t, len(msg), 4)
	require.Equal(t, Frame, msg[0])
	flags, index, rgba = msg[1], int(binary.LittleEndian.Uint16(msg[2:])), msg[4:]
	if flags&FlagCompressed != 0 {
		var err error
		rgba, err = io.ReadAll(brotli.NewReader(bytes.NewReader(rgba)))
		require.NoError(t, err)
	}
	return flags, index, rgba
}

func TestServer_Frames(t *testing.T) {
	srv, conn := startServer(t, newFakeController(), WithCompression(5))

	status := read(t, conn)
	assert.Equal(t, []byte{ServerStatus, uint8(emulator.Running), 1}, status)

	require.NoError(t, srv.Publish(solidFrame(0x10)))
	flags, index, rgba := decodeFrame(t, read(t, conn))
	assert.Equal(t, FlagCompressed, flags)
	assert.Equal(t, 0, index)
	require.Len(t, rgba, frameSize)
	assert.Equal(t, []byte{0x10, 0x10, 0x10, 0xFF}, rgba[:4])

	// identical frames are counted, not sent
	require.NoError(t, srv.Publish(solidFrame(0x10)))
	require.NoError(t, srv.Publish(solidFrame(0x10)))
	require.NoError(t, srv.Publish(solidFrame(0x20)))
	skip := read(t, conn)
	assert.Equal(t, FrameSkip, skip[0])
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(skip[1:]))
	_, index, rgba = decodeFrame(t, read(t, conn))
	assert.Equal(t, 1, index)
	assert.Equal(t, byte(0x20), rgba[0])

	// a frame seen before is sent as its cache slot
	require.NoError(t, srv.Publish(solidFrame(0x10)))
	assert.Equal(t, []byte{FrameCache, 0, 0}, read(t, conn))
}

func TestServer_LateClientSync(t *testing.T) {
	ctrl := newFakeController()
	srv, first := startServer(t, ctrl)
	read(t, first)

	require.NoError(t, srv.Publish(solidFrame(0x01)))
	read(t, first)
	require.NoError(t, srv.Publish(solidFrame(0x02)))
	read(t, first)

	ts := httptest.NewServer(srv)
	defer ts.Close()
	late, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer late.Close()

	assert.Equal(t, ServerStatus, read(t, late)[0])
	for i, want := range []byte{0x01, 0x02} {
		flags, index, rgba := decodeFrame(t, read(t, late))
		assert.Equal(t, FlagCacheOnly, flags)
		assert.Equal(t, i, index)
		assert.Equal(t, want, rgba[0])
	}
	assert.Equal(t, []byte{FrameCache, 1, 0}, read(t, late))
}

func TestServer_Input(t *testing.T) {
	ctrl := newFakeController()
	_, conn := startServer(t, ctrl)
	read(t, conn)

	mask := types.ButtonA | types.ButtonStart
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{mask}))
	select {
	case got := <-ctrl.inputs:
		assert.Equal(t, mask, got)
	case <-time.After(5 * time.Second):
		t.Fatal("input not forwarded")
	}
}

func TestServer_Commands(t *testing.T) {
	ctrl := newFakeController()
	_, conn := startServer(t, ctrl)
	read(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{CommandPrefix, uint8(emulator.CommandPause)}))
	// the response and the status broadcast take different paths through the hub
	assert.ElementsMatch(t, [][]byte{
		{CommandResponse, uint8(emulator.CommandPause), 1},
		{ServerStatus, uint8(emulator.Paused), 0},
	}, [][]byte{read(t, conn), read(t, conn)})
	assert.Equal(t, emulator.Paused, ctrl.Status())

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{CommandPrefix, 99}))
	resp := read(t, conn)
	assert.Equal(t, []byte{CommandResponse, 99, 0}, resp[:3])
	assert.Contains(t, string(resp[3:]), "unknown command")
}
