package cartridge

import "fmt"

// Type represents the hardware present in a cartridge ($0147).
type Type uint8

const (
	ROM               Type = 0x00
	MBC1              Type = 0x01
	MBC1RAM           Type = 0x02
	MBC1RAMBATT       Type = 0x03
	MBC2              Type = 0x05
	MBC2BATT          Type = 0x06
	ROMRAM            Type = 0x08
	ROMRAMBATT        Type = 0x09
	MMM01             Type = 0x0B
	MMM01RAM          Type = 0x0C
	MMM01RAMBATT      Type = 0x0D
	MBC3TIMERBATT     Type = 0x0F
	MBC3TIMERRAMBATT  Type = 0x10
	MBC3              Type = 0x11
	MBC3RAM           Type = 0x12
	MBC3RAMBATT       Type = 0x13
	MBC5              Type = 0x19
	MBC5RAM           Type = 0x1A
	MBC5RAMBATT       Type = 0x1B
	MBC5RUMBLE        Type = 0x1C
	MBC5RUMBLERAM     Type = 0x1D
	MBC5RUMBLERAMBATT Type = 0x1E
	POCKETCAMERA      Type = 0xFC
	BANDAITAMA5       Type = 0xFD
	HUDSONHUC3        Type = 0xFE
	HUDSONHUC1        Type = 0xFF
)

var typeNames = map[Type]string{
	ROM:               "ROM",
	MBC1:              "MBC1",
	MBC1RAM:           "MBC1+RAM",
	MBC1RAMBATT:       "MBC1+RAM+BATTERY",
	MBC2:              "MBC2",
	MBC2BATT:          "MBC2+BATTERY",
	ROMRAM:            "ROM+RAM",
	ROMRAMBATT:        "ROM+RAM+BATTERY",
	MMM01:             "MMM01",
	MMM01RAM:          "MMM01+RAM",
	MMM01RAMBATT:      "MMM01+RAM+BATTERY",
	MBC3TIMERBATT:     "MBC3+TIMER+BATTERY",
	MBC3TIMERRAMBATT:  "MBC3+TIMER+RAM+BATTERY",
	MBC3:              "MBC3",
	MBC3RAM:           "MBC3+RAM",
	MBC3RAMBATT:       "MBC3+RAM+BATTERY",
	MBC5:              "MBC5",
	MBC5RAM:           "MBC5+RAM",
	MBC5RAMBATT:       "MBC5+RAM+BATTERY",
	MBC5RUMBLE:        "MBC5+RUMBLE",
	MBC5RUMBLERAM:     "MBC5+RUMBLE+RAM",
	MBC5RUMBLERAMBATT: "MBC5+RUMBLE+RAM+BATTERY",
	POCKETCAMERA:      "POCKET CAMERA",
	BANDAITAMA5:       "BANDAI TAMA5",
	HUDSONHUC3:        "HuC3",
	HUDSONHUC1:        "HuC1+RAM+BATTERY",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(0x%02X)", uint8(t))
}

// Controller is the family of banking controller driving a cartridge.
type Controller uint8

const (
	ControllerNone Controller = iota
	ControllerMBC1
	ControllerMBC2
	ControllerMBC3
	ControllerMBC5
	ControllerUnsupported
)

// Controller returns the banking controller family for the type.
func (t Type) Controller() Controller {
	switch t {
	case ROM, ROMRAM, ROMRAMBATT:
		return ControllerNone
	case MBC1, MBC1RAM, MBC1RAMBATT:
		return ControllerMBC1
	case MBC2, MBC2BATT:
		return ControllerMBC2
	case MBC3, MBC3RAM, MBC3RAMBATT, MBC3TIMERBATT, MBC3TIMERRAMBATT:
		return ControllerMBC3
	case MBC5, MBC5RAM, MBC5RAMBATT, MBC5RUMBLE, MBC5RUMBLERAM, MBC5RUMBLERAMBATT:
		return ControllerMBC5
	}
	return ControllerUnsupported
}

// HasBattery reports whether external RAM survives power off.
func (t Type) HasBattery() bool {
	switch t {
	case MBC1RAMBATT, MBC2BATT, ROMRAMBATT, MMM01RAMBATT, MBC3TIMERBATT,
		MBC3TIMERRAMBATT, MBC3RAMBATT, MBC5RAMBATT, MBC5RUMBLERAMBATT, HUDSONHUC1:
		return true
	}
	return false
}

// HasRTC reports whether the cartridge carries an MBC3 real time clock.
func (t Type) HasRTC() bool {
	return t == MBC3TIMERBATT || t == MBC3TIMERRAMBATT
}

// HasRumble reports whether bit 3 of the RAM bank register drives a motor.
func (t Type) HasRumble() bool {
	return t == MBC5RUMBLE || t == MBC5RUMBLERAM || t == MBC5RUMBLERAMBATT
}
