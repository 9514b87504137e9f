package io

import (
	goio "io"

	"github.com/thelolagemann/gbcore/internal/types"
)

// serial implements a link port with nothing attached. Transfers on
// the internal clock complete at once, shifting in 0xFF, and the
// outgoing byte is handed to an optional writer.
type serial struct {
	b   *Bus
	out goio.Writer
}

func (s *serial) setup() {
	s.b.ReserveAddress(types.SB, func(v byte) byte { return v })
	s.b.ReserveAddress(types.SC, func(v byte) byte {
		if v&(types.Bit7|types.Bit0) != types.Bit7|types.Bit0 {
			return v | 0x7E
		}

		if s.out != nil {
			_, _ = s.out.Write([]byte{s.b.data[types.SB]})
		}
		s.b.data[types.SB] = 0xFF
		s.b.RaiseInterrupt(types.SerialINT)
		return v&^types.Bit7 | 0x7E
	})
}

// SetSerialOutput sets the writer receiving every byte sent over the
// link port. Test ROMs commonly report their results this way.
func (b *Bus) SetSerialOutput(w goio.Writer) {
	b.serial.out = w
}
