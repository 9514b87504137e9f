package emulator

import (
	"context"

	"github.com/thelolagemann/gbcore/internal/types"
)

// Controller defines the interface contract for a Session to implement
// in order for a presentation layer to be able to control it.
type Controller interface {
	SetInput(mask types.ButtonMask)
	Pause()
	Resume()
	Status() Status
	Execute(ctx context.Context, p CommandPacket) ResponsePacket
}

var _ Controller = (*Session)(nil)
