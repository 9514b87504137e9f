// Package web streams the frames of a session to browsers over
// WebSocket and feeds their input back into it.
package web

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/cespare/xxhash"
	"github.com/gorilla/websocket"
	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/emulator"
	"github.com/thelolagemann/gbcore/pkg/log"
)

const frameSize = ppu.ScreenWidth * ppu.ScreenHeight * 4

type directMessage struct {
	c    *Client
	data []byte
}

// Server implements http.Handler. Run must be running for clients to
// be served.
type Server struct {
	ctrl emulator.Controller

	clients              map[*Client]bool
	register, unregister chan *Client
	broadcast            chan []byte
	direct               chan directMessage
	done                 chan struct{}

	// owned by the goroutine calling Publish
	rgba      []byte
	lastHash  uint64
	sentFirst bool
	skipped   uint32
	frames    chan encodedFrame

	frameCache *cache
	current    int // cache slot of the frame on screen, -1 before the first

	compression bool
	quality     int

	mu        sync.Mutex
	currentID uint8

	log log.Logger
}

// encodedFrame is a frame ready for the hub to cache and broadcast.
type encodedFrame struct {
	hash       uint64
	data       []byte
	compressed bool
	skipped    uint32
}

// Opt configures a Server.
type Opt func(s *Server)

// WithCompression brotli compresses frames at quality, 0 to 11.
func WithCompression(quality int) Opt {
	return func(s *Server) {
		s.compression = true
		s.quality = quality
	}
}

// WithCacheSize sets the number of recent frames clients keep.
func WithCacheSize(n int) Opt {
	return func(s *Server) {
		if n > 0 {
			s.frameCache = newCache(n)
		}
	}
}

func WithLogger(l log.Logger) Opt {
	return func(s *Server) {
		s.log = l
	}
}

// New creates a Server controlling ctrl.
func New(ctrl emulator.Controller, opts ...Opt) *Server {
	s := &Server{
		ctrl:       ctrl,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		direct:     make(chan directMessage, 16),
		done:       make(chan struct{}),
		frames:     make(chan encodedFrame, 4),
		rgba:       make([]byte, frameSize),
		frameCache: newCache(32),
		current:    -1,
		log:        log.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024 * 16,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeHTTP upgrades the connection and registers the client.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugf("web: upgrade %s: %v", r.RemoteAddr, err)
		return
	}

	s.mu.Lock()
	s.currentID++
	c := &Client{
		hub:        s,
		conn:       conn,
		Send:       make(chan []byte, 256),
		ID:         s.currentID,
		RemoteAddr: r.RemoteAddr,
	}
	s.mu.Unlock()

	select {
	case s.register <- c:
	case <-s.done:
		_ = conn.Close()
		return
	}
	go c.WritePump()
	// commands outlive the upgrade request
	go c.ReadPump(context.Background())
}

// Run serves clients until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		close(s.done)
		for c := range s.clients {
			close(c.Send)
			delete(s.clients, c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-s.register:
			s.clients[c] = true
			s.sync(c)
			s.log.Infof("web: client %d connected from %s", c.ID, c.RemoteAddr)
		case c := <-s.unregister:
			if _, ok := s.clients[c]; ok {
				delete(s.clients, c)
				close(c.Send)
				s.log.Infof("web: client %d disconnected", c.ID)
			}
		case m := <-s.direct:
			if s.clients[m.c] {
				s.send(m.c, m.data)
			}
		case msg := <-s.broadcast:
			for c := range s.clients {
				s.send(c, msg)
			}
		case f := <-s.frames:
			for _, msg := range s.frameMessages(f) {
				for c := range s.clients {
					s.send(c, msg)
				}
			}
		}
	}
}

// send queues msg for c, dropping clients that cannot keep up.
func (s *Server) send(c *Client, msg []byte) {
	select {
	case c.Send <- msg:
	default:
		close(c.Send)
		delete(s.clients, c)
		s.log.Warnf("web: dropped slow client %d", c.ID)
	}
}

// sync brings a new client up to date: status, cached frames and the
// latest frame.
func (s *Server) sync(c *Client) {
	s.send(c, s.statusMessage())
	for i, e := range s.frameCache.entries {
		if e.data != nil {
			s.send(c, encodeFrame(i, e.data, e.compressed, true))
		}
	}
	if s.current >= 0 {
		s.send(c, cacheMessage(s.current))
	}
}

// frameMessages returns the messages announcing f, sending it as a
// cache index when clients already hold it.
func (s *Server) frameMessages(f encodedFrame) [][]byte {
	var msgs [][]byte
	if f.skipped > 0 {
		msgs = append(msgs, binary.LittleEndian.AppendUint32([]byte{FrameSkip}, f.skipped))
	}
	if i := s.frameCache.index(f.hash); i >= 0 {
		s.current = i
		return append(msgs, cacheMessage(i))
	}
	s.current = s.frameCache.add(f.hash, f.data, f.compressed)
	return append(msgs, encodeFrame(s.current, f.data, f.compressed, false))
}

func (s *Server) statusMessage() []byte {
	var flags uint8
	if s.compression {
		flags |= types.Bit0
	}
	return []byte{ServerStatus, uint8(s.ctrl.Status()), flags}
}

// broadcastStatus sends the session status to every client.
func (s *Server) broadcastStatus() {
	select {
	case s.broadcast <- s.statusMessage():
	case <-s.done:
	}
}

// Publish is an emulator.FrameSink. Frames identical to the previous
// one are counted and not sent.
func (s *Server) Publish(f emulator.Frame) error {
	for i, j := 0, 0; i+2 < len(f.Pixels) && j < len(s.rgba); i, j = i+3, j+4 {
		s.rgba[j], s.rgba[j+1], s.rgba[j+2], s.rgba[j+3] = f.Pixels[i], f.Pixels[i+1], f.Pixels[i+2], 0xFF
	}
	hash := xxhash.Sum64(s.rgba)
	if s.sentFirst && hash == s.lastHash {
		s.skipped++
		return nil
	}

	data := bytes.Clone(s.rgba)
	if s.compression {
		var buf bytes.Buffer
		w := brotli.NewWriterLevel(&buf, s.quality)
		if _, err := w.Write(s.rgba); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		data = buf.Bytes()
	}

	frame := encodedFrame{hash: hash, data: data, compressed: s.compression, skipped: s.skipped}
	select {
	case s.frames <- frame:
		s.lastHash, s.sentFirst, s.skipped = hash, true, 0
	case <-s.done:
	default:
		s.log.Debugf("web: hub busy, dropped a frame")
	}
	return nil
}

func encodeFrame(index int, data []byte, compressed, cacheOnly bool) []byte {
	var flags uint8
	if compressed {
		flags |= FlagCompressed
	}
	if cacheOnly {
		flags |= FlagCacheOnly
	}
	msg := make([]byte, 0, 4+len(data))
	msg = append(msg, Frame, flags)
	msg = binary.LittleEndian.AppendUint16(msg, uint16(index))
	return append(msg, data...)
}

func cacheMessage(index int) []byte {
	return binary.LittleEndian.AppendUint16([]byte{FrameCache}, uint16(index))
}
