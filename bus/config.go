package bus

import (
	"encoding/json"
	"fmt"
	"os"
)

// Fixed sizes of the device register windows.
const (
	// TimerWindow is the span of one timer's register file (CTRL through
	// ACK, word registers at 4-byte stride).
	TimerWindow = 0x20

	// UartWindow is the span of the UART register file.
	UartWindow = 0x10
)

// AddressMap positions every bus region. The sample programs shipped with
// the original system and its address-map document disagree on the
// peripheral bases, so the map is explicit configuration rather than a
// constant: DefaultAddressMap follows the sample-program scheme, and a
// host can load the alternative from JSON.
type AddressMap struct {
	// RomBase/RomSize locate program storage (read-only after load).
	RomBase uint32 `json:"rom_base"`
	RomSize uint32 `json:"rom_size"`

	// RamBase/RamSize locate data storage (read-write, zero-initialized).
	RamBase uint32 `json:"ram_base"`
	RamSize uint32 `json:"ram_size"`

	// Timer1Base and Timer2Base locate the two timer register windows.
	Timer1Base uint32 `json:"timer1_base"`
	Timer2Base uint32 `json:"timer2_base"`

	// UartBase locates the UART register window.
	UartBase uint32 `json:"uart_base"`
}

// DefaultAddressMap returns the sample-program scheme: ROM at the reset
// vector, RAM above it, peripherals in the 0x8000_2xxx window.
func DefaultAddressMap() AddressMap {
	return AddressMap{
		RomBase:    0x00000000,
		RomSize:    256 * 1024,
		RamBase:    0x00100000,
		RamSize:    1024 * 1024,
		Timer1Base: 0x80002100,
		Timer2Base: 0x80002120,
		UartBase:   0x80002200,
	}
}

// LoadAddressMap reads an address map from a JSON file. Fields absent
// from the file keep their default values.
func LoadAddressMap(path string) (AddressMap, error) {
	m := DefaultAddressMap()

	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("failed to read address map: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to parse address map: %w", err)
	}
	if err := m.Validate(); err != nil {
		return m, err
	}
	return m, nil
}

// Save writes the address map to a JSON file.
func (m AddressMap) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize address map: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write address map: %w", err)
	}
	return nil
}

type region struct {
	name string
	base uint32
	size uint32
}

func (m AddressMap) regions() []region {
	return []region{
		{"rom", m.RomBase, m.RomSize},
		{"ram", m.RamBase, m.RamSize},
		{"timer1", m.Timer1Base, TimerWindow},
		{"timer2", m.Timer2Base, TimerWindow},
		{"uart", m.UartBase, UartWindow},
	}
}

// Validate checks that the storage regions are non-empty, word-aligned,
// and that no two regions overlap. A given address must belong to at most
// one region.
func (m AddressMap) Validate() error {
	if m.RomSize == 0 || m.RamSize == 0 {
		return fmt.Errorf("rom and ram regions must be non-empty")
	}

	regs := m.regions()
	for _, r := range regs {
		if r.base%4 != 0 || r.size%4 != 0 {
			return fmt.Errorf("region %s is not word-aligned", r.name)
		}
		if r.base+r.size < r.base {
			return fmt.Errorf("region %s wraps the address space", r.name)
		}
	}
	for i, a := range regs {
		for _, b := range regs[i+1:] {
			if a.base < b.base+b.size && b.base < a.base+a.size {
				return fmt.Errorf("regions %s and %s overlap", a.name, b.name)
			}
		}
	}
	return nil
}
