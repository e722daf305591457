// Package bus implements the Nova32 system bus: the full 32-bit address
// space partitioned into disjoint regions for program storage (ROM), data
// storage (RAM), and the memory-mapped peripherals. Every CPU access is
// routed by address range; addresses in the gaps between regions are
// unmapped. The bus is little-endian.
package bus

import (
	"io"

	"github.com/novasim/nova32/devices"
)

// SystemBus owns the address space and the peripherals behind it. A bus
// and the devices it created are owned by a single engine instance and
// are never shared.
type SystemBus struct {
	m AddressMap

	rom *storage
	ram *storage

	timer1 *devices.Timer
	timer2 *devices.Timer
	uart   *devices.Uart
}

// New creates a system bus with the given address map. UART output goes
// to w; pass nil to discard it.
func New(m AddressMap, w io.Writer) (*SystemBus, error) {
	return NewWithBackend(m, devices.WriterBackend(w))
}

// NewWithBackend creates a system bus whose UART talks to the given
// backend (for hosts that also feed input, such as the interactive
// console).
func NewWithBackend(m AddressMap, backend devices.UartBackend) (*SystemBus, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &SystemBus{
		m:      m,
		rom:    newStorage(m.RomSize),
		ram:    newStorage(m.RamSize),
		timer1: devices.NewTimer(),
		timer2: devices.NewTimer(),
		uart:   devices.NewUart(backend),
	}, nil
}

// Map returns the address map the bus was built with.
func (b *SystemBus) Map() AddressMap { return b.m }

// Timer1 returns the first timer device.
func (b *SystemBus) Timer1() *devices.Timer { return b.timer1 }

// Timer2 returns the second timer device.
func (b *SystemBus) Timer2() *devices.Timer { return b.timer2 }

// Uart returns the serial device.
func (b *SystemBus) Uart() *devices.Uart { return b.uart }

// Tick advances every peripheral by one unit. The engine calls this once
// per retired instruction.
func (b *SystemBus) Tick() {
	b.timer1.Tick()
	b.timer2.Tick()
	b.uart.Tick()
}

func inRegion(addr, base, size uint32) bool {
	return addr >= base && addr-base < size
}

// Fetch reads one instruction word from program storage. Only the
// engine's fetch stage uses it; fetching outside ROM or at an unaligned
// address is fatal.
func (b *SystemBus) Fetch(addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, misalignedErr(addr)
	}
	if !inRegion(addr, b.m.RomBase, b.m.RomSize) {
		return 0, unmappedErr(addr)
	}
	return b.rom.read32(addr - b.m.RomBase), nil
}

// LoadWord writes one word through the load-time path. It targets ROM as
// well as RAM: this is how the host loader populates program storage,
// which is read-only to executed stores.
func (b *SystemBus) LoadWord(addr uint32, v uint32) error {
	if addr%4 != 0 {
		return misalignedErr(addr)
	}
	switch {
	case inRegion(addr, b.m.RomBase, b.m.RomSize):
		b.rom.write32(addr-b.m.RomBase, v)
		return nil
	case inRegion(addr, b.m.RamBase, b.m.RamSize):
		b.ram.write32(addr-b.m.RamBase, v)
		return nil
	default:
		return unmappedErr(addr)
	}
}

// Read32 loads a word, routed by address range.
func (b *SystemBus) Read32(addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, misalignedErr(addr)
	}
	switch {
	case inRegion(addr, b.m.RomBase, b.m.RomSize):
		return b.rom.read32(addr - b.m.RomBase), nil
	case inRegion(addr, b.m.RamBase, b.m.RamSize):
		return b.ram.read32(addr - b.m.RamBase), nil
	case inRegion(addr, b.m.Timer1Base, TimerWindow):
		return b.timerRead(b.timer1, addr, addr-b.m.Timer1Base)
	case inRegion(addr, b.m.Timer2Base, TimerWindow):
		return b.timerRead(b.timer2, addr, addr-b.m.Timer2Base)
	case inRegion(addr, b.m.UartBase, UartWindow):
		return b.uartRead(addr, addr-b.m.UartBase)
	default:
		return 0, unmappedErr(addr)
	}
}

// Read8 loads a byte. Device registers are read as their containing word
// with the addressed byte extracted, little-endian.
func (b *SystemBus) Read8(addr uint32) (byte, error) {
	switch {
	case inRegion(addr, b.m.RomBase, b.m.RomSize):
		return b.rom.read8(addr - b.m.RomBase), nil
	case inRegion(addr, b.m.RamBase, b.m.RamSize):
		return b.ram.read8(addr - b.m.RamBase), nil
	default:
		word, err := b.Read32(addr &^ 3)
		if err != nil {
			return 0, err
		}
		shift := (addr & 3) * 8
		return byte(word >> shift), nil
	}
}

// Write32 stores a word, routed by address range. Program storage rejects
// stores.
func (b *SystemBus) Write32(addr uint32, v uint32) error {
	if addr%4 != 0 {
		return misalignedErr(addr)
	}
	switch {
	case inRegion(addr, b.m.RomBase, b.m.RomSize):
		return readOnlyErr(addr)
	case inRegion(addr, b.m.RamBase, b.m.RamSize):
		b.ram.write32(addr-b.m.RamBase, v)
		return nil
	case inRegion(addr, b.m.Timer1Base, TimerWindow):
		return b.timerWrite(b.timer1, addr, addr-b.m.Timer1Base, v)
	case inRegion(addr, b.m.Timer2Base, TimerWindow):
		return b.timerWrite(b.timer2, addr, addr-b.m.Timer2Base, v)
	case inRegion(addr, b.m.UartBase, UartWindow):
		return b.uartWrite(addr, addr-b.m.UartBase, v)
	default:
		return unmappedErr(addr)
	}
}

// Write8 stores a byte. A byte store to the UART TX register transmits
// exactly one byte; other device registers take a read-modify-write of
// the containing word.
func (b *SystemBus) Write8(addr uint32, v byte) error {
	switch {
	case inRegion(addr, b.m.RomBase, b.m.RomSize):
		return readOnlyErr(addr)
	case inRegion(addr, b.m.RamBase, b.m.RamSize):
		b.ram.write8(addr-b.m.RamBase, v)
		return nil
	case addr == b.m.UartBase+devices.UartRegTx:
		b.uart.WriteTx(v)
		return nil
	default:
		aligned := addr &^ 3
		word, err := b.Read32(aligned)
		if err != nil {
			return err
		}
		shift := (addr & 3) * 8
		word = word&^(0xFF<<shift) | uint32(v)<<shift
		return b.Write32(aligned, word)
	}
}

func (b *SystemBus) timerRead(t *devices.Timer, addr, off uint32) (uint32, error) {
	switch off {
	case devices.TimerRegCtrl:
		return t.Ctrl(), nil
	case devices.TimerRegPeriod:
		return t.Period(), nil
	case devices.TimerRegCount:
		return t.Count(), nil
	case devices.TimerRegReset, devices.TimerRegAck:
		return 0, nil
	default:
		return 0, unmappedErr(addr)
	}
}

func (b *SystemBus) timerWrite(t *devices.Timer, addr, off uint32, v uint32) error {
	switch off {
	case devices.TimerRegCtrl:
		t.SetCtrl(v)
		return nil
	case devices.TimerRegPeriod:
		t.SetPeriod(v)
		return nil
	case devices.TimerRegCount:
		return readOnlyErr(addr)
	case devices.TimerRegReset:
		t.Reset()
		return nil
	case devices.TimerRegAck:
		t.Ack()
		return nil
	default:
		return unmappedErr(addr)
	}
}

func (b *SystemBus) uartRead(addr, off uint32) (uint32, error) {
	switch off {
	case devices.UartRegTx:
		return 0, nil
	case devices.UartRegStatus:
		return b.uart.Status(), nil
	case devices.UartRegRx:
		return uint32(b.uart.ReadRx()), nil
	default:
		return 0, unmappedErr(addr)
	}
}

func (b *SystemBus) uartWrite(addr, off uint32, v uint32) error {
	switch off {
	case devices.UartRegTx:
		b.uart.WriteTx(byte(v))
		return nil
	case devices.UartRegStatus:
		b.uart.SetStatus(v)
		return nil
	case devices.UartRegRx:
		return readOnlyErr(addr)
	default:
		return unmappedErr(addr)
	}
}
