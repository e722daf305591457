// Package devices provides the Nova32 memory-mapped peripherals: a serial
// UART and hardware countdown timers. Devices are plain state machines;
// the execution engine advances them by exactly one tick per retired
// instruction, so their behavior is deterministic and independent of
// wall-clock time.
package devices

// Timer control register bits.
const (
	TimerEnabled   uint32 = 1 << 0 // 0 = stopped, 1 = counting
	TimerIRQEnable uint32 = 1 << 1 // raise the pending flag on expiry
	TimerOneShot   uint32 = 1 << 2 // 0 = periodic, 1 = one-shot
)

// Timer register offsets from the device base address.
const (
	TimerRegCtrl   = 0x00 // R/W
	TimerRegPeriod = 0x04 // R/W, write resets the count
	TimerRegCount  = 0x08 // R
	TimerRegReset  = 0x0C // W, resets the count
	TimerRegAck    = 0x10 // W, clears the pending IRQ flag
)

// Timer is a countdown timer advanced once per engine step while enabled.
// The count stays within [0, period]: a periodic timer wraps to 0 on
// reaching the period, a one-shot timer freezes at the period and clears
// its ENABLED bit. The IRQ pending flag is raised on expiry when
// IRQ_ENABLE is set, but this model never delivers it as an interrupt;
// software can only observe and acknowledge it.
type Timer struct {
	ctrl    uint32
	period  uint32
	count   uint32
	pending bool
}

// NewTimer creates a stopped timer with period 0.
func NewTimer() *Timer {
	return &Timer{}
}

// Ctrl returns the control register value.
func (t *Timer) Ctrl() uint32 { return t.ctrl }

// Period returns the period register value.
func (t *Timer) Period() uint32 { return t.period }

// Count returns the current count. The count register is read-only from
// software; it advances only through Tick.
func (t *Timer) Count() uint32 { return t.count }

// IRQPending reports whether an expiry has been flagged and not yet
// acknowledged.
func (t *Timer) IRQPending() bool { return t.pending }

// SetCtrl writes the control register.
func (t *Timer) SetCtrl(v uint32) { t.ctrl = v }

// SetPeriod writes the period register and resets the count.
func (t *Timer) SetPeriod(v uint32) {
	t.period = v
	t.count = 0
}

// Reset zeroes the count without touching the control or period registers.
func (t *Timer) Reset() { t.count = 0 }

// Ack clears the pending IRQ flag.
func (t *Timer) Ack() { t.pending = false }

// Tick advances the timer by one unit. A disabled timer does not count.
// A period of 0 with ENABLED set applies the wrap/stop rule on the very
// next tick instead of counting past it.
func (t *Timer) Tick() {
	if t.ctrl&TimerEnabled == 0 {
		return
	}

	if t.count < t.period {
		t.count++
	}
	if t.count < t.period {
		return
	}

	// Expired.
	if t.ctrl&TimerIRQEnable != 0 {
		t.pending = true
	}
	if t.ctrl&TimerOneShot != 0 {
		t.ctrl &^= TimerEnabled
	} else {
		t.count = 0
	}
}
