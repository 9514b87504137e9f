package io

import "github.com/thelolagemann/gbcore/internal/types"

// oamDMA copies 160 bytes from source into OAM.
func (b *Bus) oamDMA(source uint16) {
	if source >= 0xE000 {
		// the DMA unit sees echo RAM up to 0xFFFF
		source -= 0x2000
	}
	for i := uint16(0); i < 0xA0; i++ {
		b.data[0xFE00+i] = b.Read(source + i)
	}
}

// hdma implements the CGB VRAM DMA controller (HDMA1-HDMA5).
type hdma struct {
	b *Bus

	source      uint16
	destination uint16
	remaining   uint8 // blocks of 16 bytes left
	active      bool  // an h-blank transfer is in progress
}

func (h *hdma) setup() {
	h.b.ReserveReader(types.HDMA1, func() byte { return 0xFF })
	h.b.ReserveReader(types.HDMA2, func() byte { return 0xFF })
	h.b.ReserveReader(types.HDMA3, func() byte { return 0xFF })
	h.b.ReserveReader(types.HDMA4, func() byte { return 0xFF })
	h.b.ReserveAddress(types.HDMA1, func(v byte) byte {
		h.source = h.source&0x00FF | uint16(v)<<8
		return v
	})
	h.b.ReserveAddress(types.HDMA2, func(v byte) byte {
		h.source = h.source&0xFF00 | uint16(v&0xF0)
		return v
	})
	h.b.ReserveAddress(types.HDMA3, func(v byte) byte {
		h.destination = h.destination&0x00FF | uint16(v&0x1F)<<8
		return v
	})
	h.b.ReserveAddress(types.HDMA4, func(v byte) byte {
		h.destination = h.destination&0xFF00 | uint16(v&0xF0)
		return v
	})
	h.b.ReserveAddress(types.HDMA5, func(v byte) byte {
		if h.active && v&types.Bit7 == 0 {
			// cancel the running h-blank transfer
			h.active = false
			return types.Bit7 | (h.remaining-1)&0x7F
		}

		h.remaining = v&0x7F + 1
		if v&types.Bit7 == 0 {
			for h.remaining > 0 {
				h.block()
			}
			return 0xFF
		}

		h.active = true
		return h.remaining - 1
	})
	h.b.Set(types.HDMA5, 0xFF)
}

// block copies the next 16 bytes into the selected VRAM bank.
func (h *hdma) block() {
	for i := uint16(0); i < 16; i++ {
		value := h.b.Read(h.source + i)
		h.b.Write(0x8000|(h.destination+i)&0x1FFF, value)
	}
	h.source += 16
	h.destination = (h.destination + 16) & 0x1FFF
	h.remaining--
}

// HBlankDMA is called by the PPU at the start of every h-blank.
func (b *Bus) HBlankDMA() {
	h := &b.hdma
	if !h.active {
		return
	}
	h.block()
	if h.remaining == 0 {
		h.active = false
		b.data[types.HDMA5] = 0xFF
	} else {
		b.data[types.HDMA5] = h.remaining - 1
	}
}

func (h *hdma) Load(s *types.State) {
	h.source = s.Read16()
	h.destination = s.Read16()
	h.remaining = s.Read8()
	h.active = s.ReadBool()
}

func (h *hdma) Save(s *types.State) {
	s.Write16(h.source)
	s.Write16(h.destination)
	s.Write8(h.remaining)
	s.WriteBool(h.active)
}
