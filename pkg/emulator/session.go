// Package emulator binds an engine to a save store and drives it
// frame by frame on behalf of a host.
package emulator

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/thelolagemann/gbcore/internal/cartridge"
	"github.com/thelolagemann/gbcore/internal/gameboy"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/cheats"
	"github.com/thelolagemann/gbcore/pkg/log"
	"github.com/thelolagemann/gbcore/pkg/storage"
	"github.com/thelolagemann/gbcore/pkg/utils"
)

// FrameDuration is the time the hardware takes to draw one frame.
const FrameDuration = time.Second * gameboy.CyclesPerFrame / gameboy.ClockSpeed

// CrashError is returned by Run when the engine stops on a fatal fault.
type CrashError struct {
	PC     uint16
	Opcode uint8
	Cycle  uint64
	Err    error
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("emulator: crashed at %04X (opcode %02X, cycle %d): %v", e.PC, e.Opcode, e.Cycle, e.Err)
}

func (e *CrashError) Unwrap() error { return e.Err }

// Frame is handed to the sink after every completed frame. Pixels and
// Audio are only valid during the call.
type Frame struct {
	Index  uint64
	Pixels []byte // RGB, 3 bytes per pixel
	Audio  []byte // unsigned 8-bit stereo samples produced during the frame
}

// FrameSink receives completed frames. Returning an error stops Run.
type FrameSink func(f Frame) error

// Session runs one cartridge at a time. Calls into the engine are
// serialized, so Execute, SaveState and friends are safe to use from
// other goroutines while Run is in progress.
type Session struct {
	mu     sync.Mutex
	gb     *gameboy.GameBoy
	header *cartridge.Header
	store  storage.Store
	opts   []gameboy.Opt
	status Status

	input    atomic.Uint32
	pauseMu  sync.Mutex
	resumeCh chan struct{} // non-nil while paused

	cheats []cheats.Cheat

	realtime bool
	audio    []byte
	log      log.Logger
}

// Opt configures a Session.
type Opt func(s *Session)

// WithEngineOptions passes options to every engine the session creates.
func WithEngineOptions(opts ...gameboy.Opt) Opt {
	return func(s *Session) {
		s.opts = append(s.opts, opts...)
	}
}

// WithRealtime paces Run to the hardware frame rate.
func WithRealtime() Opt {
	return func(s *Session) {
		s.realtime = true
	}
}

// WithCheats enables cheats. Game Genie codes are patched into the ROM
// when it is loaded; GameShark codes are applied before every frame.
func WithCheats(c []cheats.Cheat) Opt {
	return func(s *Session) {
		s.cheats = c
	}
}

func WithLogger(l log.Logger) Opt {
	return func(s *Session) {
		s.log = l
	}
}

// NewSession creates a session persisting to store. The session takes
// ownership of the store and closes it in Close.
func NewSession(store storage.Store, opts ...Opt) *Session {
	s := &Session{
		store: store,
		audio: make([]byte, 0x4000),
		log:   log.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches a ROM from path, decompressing it if needed, and loads it.
func (s *Session) Load(ctx context.Context, path string) error {
	rom, err := utils.LoadFile(path)
	if err != nil {
		return errors.Wrap(err, "load rom")
	}
	return s.LoadROM(ctx, rom)
}

// LoadROM starts a fresh engine on rom. Stored battery RAM is restored.
func (s *Session) LoadROM(ctx context.Context, rom []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cheats) > 0 {
		rom = bytes.Clone(rom)
		if n := cheats.PatchROM(rom, s.cheats); n > 0 {
			s.log.Infof("emulator: patched %d ROM bytes", n)
		}
	}

	opts := append([]gameboy.Opt{gameboy.WithLogger(s.log)}, s.opts...)
	gb := gameboy.New(opts...)
	if err := gb.LoadROM(rom); err != nil {
		return err
	}
	header, _ := gb.Header()

	if gb.HasBattery() {
		data, err := s.store.LoadBattery(ctx, header.Key())
		switch {
		case errors.Is(err, storage.ErrNoBattery):
		case err != nil:
			return errors.Wrap(err, "load battery")
		default:
			if err := gb.LoadBatteryRAM(data); err != nil {
				// keep running with blank RAM rather than refuse the cartridge
				s.log.Warnf("emulator: ignoring stored battery image: %v", err)
			}
		}
	}

	s.gb, s.header = gb, header
	s.status = Running
	s.log.Infof("emulator: loaded %q", header.Title)
	return nil
}

// Header returns the decoded header of the loaded cartridge.
func (s *Session) Header() (*cartridge.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gb == nil {
		return nil, gameboy.ErrNoCartridge
	}
	return s.header, nil
}

// Status returns the state of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()
	if status == Running && s.paused() {
		return Paused
	}
	return status
}

// SetInput sets the buttons applied from the next frame on.
func (s *Session) SetInput(mask types.ButtonMask) {
	s.input.Store(uint32(mask))
}

// Pause suspends Run at the next frame boundary.
func (s *Session) Pause() {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	if s.resumeCh == nil {
		s.resumeCh = make(chan struct{})
	}
}

// Resume continues a paused Run.
func (s *Session) Resume() {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	if s.resumeCh != nil {
		close(s.resumeCh)
		s.resumeCh = nil
	}
}

func (s *Session) paused() bool {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()
	return s.resumeCh != nil
}

func (s *Session) waitResume(ctx context.Context) error {
	s.pauseMu.Lock()
	ch := s.resumeCh
	s.pauseMu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetCheat toggles the cheats called name. Game Genie codes only take
// effect on the next load.
func (s *Session) SetCheat(name string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cheats.Set(s.cheats, name, enabled)
}

// SaveState captures the machine and appends it to the store.
func (s *Session) SaveState(ctx context.Context) (storage.StateInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gb == nil {
		return storage.StateInfo{}, gameboy.ErrNoCartridge
	}

	blob, err := s.gb.CaptureState()
	if err != nil {
		return storage.StateInfo{}, err
	}
	info, err := s.store.AppendState(ctx, s.header.Key(), blob)
	if err != nil {
		return storage.StateInfo{}, errors.Wrap(err, "store state")
	}
	s.log.Infof("emulator: saved state %d", info.Index)
	return info, nil
}

// LoadState restores the stored state with the given index, or the
// latest one when index is 0. Without a cartridge it fails with
// gameboy.ErrNoCartridge; without a stored state with
// storage.ErrNoState.
func (s *Session) LoadState(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gb == nil {
		return gameboy.ErrNoCartridge
	}

	var (
		blob []byte
		err  error
	)
	if index == 0 {
		blob, err = s.store.LatestState(ctx, s.header.Key())
	} else {
		blob, err = s.store.LoadState(ctx, s.header.Key(), index)
	}
	if err != nil {
		return err
	}
	if err := s.gb.RestoreState(blob); err != nil {
		return errors.Wrap(err, "restore state")
	}
	s.status = Running
	return nil
}

// SaveBattery writes the cartridge RAM to the store. Cartridges
// without a battery are skipped.
func (s *Session) SaveBattery(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gb == nil {
		return gameboy.ErrNoCartridge
	}
	if !s.gb.HasBattery() {
		return nil
	}
	return s.store.SaveBattery(ctx, s.header.Key(), s.gb.BatteryRAM())
}

// Run executes frames until frames have completed (forever when frames
// is 0), ctx is done, the sink fails or the engine crashes.
func (s *Session) Run(ctx context.Context, frames uint64, sink FrameSink) error {
	var tick <-chan time.Time
	if s.realtime {
		ticker := time.NewTicker(FrameDuration)
		defer ticker.Stop()
		tick = ticker.C
	}

	for n := uint64(0); frames == 0 || n < frames; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.waitResume(ctx); err != nil {
			return err
		}

		frame, err := s.step()
		if err != nil {
			return err
		}
		if sink != nil {
			if err := sink(frame); err != nil {
				return errors.Wrap(err, "frame sink")
			}
		}

		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// step runs one frame. The returned slices alias session buffers.
func (s *Session) step() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gb == nil {
		return Frame{}, gameboy.ErrNoCartridge
	}

	s.gb.SetInputState(types.ButtonMask(s.input.Load()))
	cheats.Apply(s.gb, s.cheats)
	if status := s.gb.RunFrame(); status != gameboy.StatusOK {
		s.status = Crashed
		d := s.gb.Diagnostics()
		return Frame{}, &CrashError{PC: d.PC, Opcode: d.Opcode, Cycle: d.Cycle, Err: d.Err}
	}

	if need := s.gb.AudioSampleCount() * 2; need > cap(s.audio) {
		s.audio = make([]byte, need)
	}
	n := s.gb.AudioSamples(s.audio[:cap(s.audio)])
	return Frame{Index: s.gb.FrameCount(), Pixels: s.gb.Frame(), Audio: s.audio[:n]}, nil
}

// Close writes battery RAM and closes the store.
func (s *Session) Close() error {
	var result error
	if err := s.SaveBattery(context.Background()); err != nil && !errors.Is(err, gameboy.ErrNoCartridge) {
		result = multierror.Append(result, errors.Wrap(err, "save battery"))
	}
	if err := s.store.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "close store"))
	}
	s.Resume()
	return result
}
