package types

// HardwareAddress is the CPU-visible address of a memory-mapped
// hardware register. The registers live in 0xFF00 - 0xFF7F, with
// the interrupt enable register alone at 0xFFFF.
type HardwareAddress = uint16

const (
	// P1 selects a joypad button group in bits 4-5 and reports the
	// state of the selected group in bits 0-3 (0 = pressed).
	P1 HardwareAddress = 0xFF00
	// SB holds the byte being shifted out of (and into) the serial port.
	SB HardwareAddress = 0xFF01
	// SC controls the serial port. Writing bit 7 starts a transfer,
	// bit 0 selects the internal clock.
	SC HardwareAddress = 0xFF02
	// DIV exposes the upper byte of the 16-bit system divider.
	// Any write resets the whole divider to zero.
	DIV HardwareAddress = 0xFF04
	// TIMA is incremented at the rate selected by TAC, and reloaded
	// from TMA with a timer interrupt request when it overflows.
	TIMA HardwareAddress = 0xFF05
	// TMA is the value loaded into TIMA on overflow.
	TMA HardwareAddress = 0xFF06
	// TAC enables the timer (bit 2) and selects its input clock (bits 0-1).
	//
	//	00: 4096 Hz    (divider bit 9)
	//	01: 262144 Hz  (divider bit 3)
	//	10: 65536 Hz   (divider bit 5)
	//	11: 16384 Hz   (divider bit 7)
	TAC HardwareAddress = 0xFF07
	// IF holds the pending interrupt requests.
	//
	//	Bit 0: V-Blank  (INT 0x40)
	//	Bit 1: LCD STAT (INT 0x48)
	//	Bit 2: Timer    (INT 0x50)
	//	Bit 3: Serial   (INT 0x58)
	//	Bit 4: Joypad   (INT 0x60)
	IF HardwareAddress = 0xFF0F

	NR10 HardwareAddress = 0xFF10
	NR11 HardwareAddress = 0xFF11
	NR12 HardwareAddress = 0xFF12
	NR13 HardwareAddress = 0xFF13
	NR14 HardwareAddress = 0xFF14
	NR21 HardwareAddress = 0xFF16
	NR22 HardwareAddress = 0xFF17
	NR23 HardwareAddress = 0xFF18
	NR24 HardwareAddress = 0xFF19
	NR30 HardwareAddress = 0xFF1A
	NR31 HardwareAddress = 0xFF1B
	NR32 HardwareAddress = 0xFF1C
	NR33 HardwareAddress = 0xFF1D
	NR34 HardwareAddress = 0xFF1E
	NR41 HardwareAddress = 0xFF20
	NR42 HardwareAddress = 0xFF21
	NR43 HardwareAddress = 0xFF22
	NR44 HardwareAddress = 0xFF23
	NR50 HardwareAddress = 0xFF24
	NR51 HardwareAddress = 0xFF25
	NR52 HardwareAddress = 0xFF26
	// WaveRAM is the first of the 16 bytes of wave pattern RAM.
	WaveRAM HardwareAddress = 0xFF30

	// LCDC is the LCD control register.
	//
	//	Bit 7: LCD enable
	//	Bit 6: window tile map      (0=9800, 1=9C00)
	//	Bit 5: window enable
	//	Bit 4: BG/window tile data  (0=8800 signed, 1=8000 unsigned)
	//	Bit 3: BG tile map          (0=9800, 1=9C00)
	//	Bit 2: OBJ size             (0=8x8, 1=8x16)
	//	Bit 1: OBJ enable
	//	Bit 0: BG enable (DMG), BG/window master priority (CGB)
	LCDC HardwareAddress = 0xFF40
	// STAT is the LCD status register. Bits 3-6 select the sources
	// of the STAT interrupt (h-blank, v-blank, OAM, LY=LYC), bit 2
	// is the coincidence flag and bits 0-1 the current mode.
	STAT HardwareAddress = 0xFF41
	SCY  HardwareAddress = 0xFF42
	SCX  HardwareAddress = 0xFF43
	// LY is the scanline currently being processed (0-153). Read only.
	LY  HardwareAddress = 0xFF44
	LYC HardwareAddress = 0xFF45
	// DMA copies 160 bytes from XX00 to OAM when XX is written.
	DMA  HardwareAddress = 0xFF46
	BGP  HardwareAddress = 0xFF47
	OBP0 HardwareAddress = 0xFF48
	OBP1 HardwareAddress = 0xFF49
	WY   HardwareAddress = 0xFF4A
	// WX is the window X position plus 7.
	WX HardwareAddress = 0xFF4B
	// KEY1 arms (bit 0) and reports (bit 7) the CGB double speed switch.
	KEY1 HardwareAddress = 0xFF4D
	// VBK selects the VRAM bank visible at 0x8000 in CGB mode.
	VBK HardwareAddress = 0xFF4F
	// BDIS unmaps the boot ROM once written.
	BDIS  HardwareAddress = 0xFF50
	HDMA1 HardwareAddress = 0xFF51
	HDMA2 HardwareAddress = 0xFF52
	HDMA3 HardwareAddress = 0xFF53
	HDMA4 HardwareAddress = 0xFF54
	// HDMA5 starts a VRAM transfer. Bit 7 selects h-blank mode,
	// bits 0-6 the length in 16 byte blocks minus one.
	HDMA5 HardwareAddress = 0xFF55
	// BCPS selects the background palette byte (bits 0-5) accessed
	// through BCPD, auto-incrementing after writes when bit 7 is set.
	BCPS HardwareAddress = 0xFF68
	BCPD HardwareAddress = 0xFF69
	OCPS HardwareAddress = 0xFF6A
	OCPD HardwareAddress = 0xFF6B
	// OPRI selects how overlapping objects are ordered on CGB.
	// Bit 0 set uses the X coordinate, clear uses the OAM index.
	OPRI HardwareAddress = 0xFF6C
	// SVBK selects the WRAM bank (1-7) visible at 0xD000. Zero selects 1.
	SVBK HardwareAddress = 0xFF70
	// IE holds the enabled interrupts, using the same layout as IF.
	IE HardwareAddress = 0xFFFF
)
