// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// Register offsets. The device exposes 32 byte registers; every access goes
// through a command byte (see CmdSelect).
const (
	RegControl         = 0x00
	RegALSTime         = 0x01
	RegProxTime        = 0x02
	RegWaitTime        = 0x03
	RegALSMinThreshLo  = 0x04
	RegALSMinThreshHi  = 0x05
	RegALSMaxThreshLo  = 0x06
	RegALSMaxThreshHi  = 0x07
	RegProxMinThreshLo = 0x08
	RegProxMinThreshHi = 0x09
	RegProxMaxThreshLo = 0x0A
	RegProxMaxThreshHi = 0x0B
	RegInterrupt       = 0x0C
	RegProxConfig      = 0x0D
	RegProxCount       = 0x0E
	RegGain            = 0x0F
	RegRevID           = 0x11
	RegChipID          = 0x12
	RegStatus          = 0x13
	RegClearLo         = 0x14
	RegClearHi         = 0x15
	RegIRLo            = 0x16
	RegIRHi            = 0x17
	RegProxLo          = 0x18
	RegProxHi          = 0x19
	RegTestStatus      = 0x1F

	// NumRegisters bounds the byte-stream cursor.
	NumRegisters = 32
)

// Command byte fields.
const (
	CmdSelect       = 0x80
	CmdAutoIncr     = 0x10
	CmdByte         = 0x00
	CmdSpecialFn    = 0x60
	CmdProxIntClear = 0x05
	CmdALSIntClear  = 0x06
	CmdIntClear     = 0x07
)

// Control register bits.
const (
	CtrlProxIntEnable = 0x20
	CtrlALSIntEnable  = 0x10
	CtrlWaitEnable    = 0x08
	CtrlProxEnable    = 0x04
	CtrlADCEnable     = 0x02
	CtrlPowerOn       = 0x01
	CtrlSensorsEnable = 0x0F
)

// Status register bits.
const (
	StatusALSValid = 0x01
	StatusALSInt   = 0x10
	StatusProxInt  = 0x20
)

// InitRegisterBank is the power-on image of registers 0x00-0x0F restored
// after a proximity calibration sweep.
var InitRegisterBank = [16]byte{
	0x00, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0xFF, 0xFF,
	0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00,
}

// BitField describes one field of a register for the debug UI.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo describes one register for the debug UI.
type RegisterInfo struct {
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// RegisterMap returns metadata for all TMD2771 registers.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: "0x00", Name: "ENABLE", Description: "Enables states and interrupts", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "5", Name: "PIEN", Description: "Proximity interrupt mask", Values: "0=Disabled, 1=Enabled"},
				{Bits: "4", Name: "AIEN", Description: "ALS interrupt mask", Values: "0=Disabled, 1=Enabled"},
				{Bits: "3", Name: "WEN", Description: "Wait enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "2", Name: "PEN", Description: "Proximity enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "1", Name: "AEN", Description: "ALS ADC enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "0", Name: "PON", Description: "Power on", Values: "0=Sleep, 1=Oscillator on"},
			}},
		{Address: "0x01", Name: "ATIME", Description: "ALS ADC integration time", Access: "RW", Default: "0xFF",
			BitFields: []BitField{
				{Bits: "7:0", Name: "ATIME", Description: "Integration cycles = 256 - ATIME, 2.72ms each", Values: "0xFF=2.72ms ... 0x00=696ms"},
			}},
		{Address: "0x02", Name: "PTIME", Description: "Proximity ADC time", Access: "RW", Default: "0xFF"},
		{Address: "0x03", Name: "WTIME", Description: "Wait time", Access: "RW", Default: "0xFF"},
		{Address: "0x04", Name: "AILTL", Description: "ALS interrupt low threshold low byte", Access: "RW", Default: "0x00"},
		{Address: "0x05", Name: "AILTH", Description: "ALS interrupt low threshold high byte", Access: "RW", Default: "0x00"},
		{Address: "0x06", Name: "AIHTL", Description: "ALS interrupt high threshold low byte", Access: "RW", Default: "0x00"},
		{Address: "0x07", Name: "AIHTH", Description: "ALS interrupt high threshold high byte", Access: "RW", Default: "0x00"},
		{Address: "0x08", Name: "PILTL", Description: "Proximity interrupt low threshold low byte", Access: "RW", Default: "0x00"},
		{Address: "0x09", Name: "PILTH", Description: "Proximity interrupt low threshold high byte", Access: "RW", Default: "0x00"},
		{Address: "0x0A", Name: "PIHTL", Description: "Proximity interrupt high threshold low byte", Access: "RW", Default: "0x00"},
		{Address: "0x0B", Name: "PIHTH", Description: "Proximity interrupt high threshold high byte", Access: "RW", Default: "0x00"},
		{Address: "0x0C", Name: "PERS", Description: "Interrupt persistence filters", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:4", Name: "PPERS", Description: "Proximity interrupt persistence", Values: "0=every cycle, n=n consecutive"},
				{Bits: "3:0", Name: "APERS", Description: "ALS interrupt persistence", Values: "0=every cycle, 1..15=1,2,3,5..60"},
			}},
		{Address: "0x0D", Name: "CONFIG", Description: "Configuration", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "1", Name: "WLONG", Description: "Wait long (x12)", Values: "0=Off, 1=On"},
			}},
		{Address: "0x0E", Name: "PPCOUNT", Description: "Proximity pulse count", Access: "RW", Default: "0x00"},
		{Address: "0x0F", Name: "CONTROL", Description: "Gain control", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:6", Name: "PDRIVE", Description: "LED drive strength", Values: "0=100mA, 1=50mA, 2=25mA, 3=12.5mA"},
				{Bits: "5:4", Name: "PDIODE", Description: "Proximity diode select", Values: "2=CH1 diode"},
				{Bits: "1:0", Name: "AGAIN", Description: "ALS gain", Values: "0=1x, 1=8x, 2=16x, 3=120x"},
			}},
		{Address: "0x11", Name: "REV", Description: "Revision number", Access: "R"},
		{Address: "0x12", Name: "ID", Description: "Device ID", Access: "R"},
		{Address: "0x13", Name: "STATUS", Description: "Device status", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "5", Name: "PINT", Description: "Proximity interrupt", Values: ""},
				{Bits: "4", Name: "AINT", Description: "ALS interrupt", Values: ""},
				{Bits: "0", Name: "AVALID", Description: "ALS valid", Values: ""},
			}},
		{Address: "0x14", Name: "C0DATA", Description: "CH0 (clear) ADC low byte", Access: "R"},
		{Address: "0x15", Name: "C0DATAH", Description: "CH0 (clear) ADC high byte", Access: "R"},
		{Address: "0x16", Name: "C1DATA", Description: "CH1 (IR) ADC low byte", Access: "R"},
		{Address: "0x17", Name: "C1DATAH", Description: "CH1 (IR) ADC high byte", Access: "R"},
		{Address: "0x18", Name: "PDATA", Description: "Proximity ADC low byte", Access: "R"},
		{Address: "0x19", Name: "PDATAH", Description: "Proximity ADC high byte", Access: "R"},
		{Address: "0x1F", Name: "TEST", Description: "Factory test status", Access: "R"},
	}
}
