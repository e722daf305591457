package devices

import "io"

// UART status register bits.
const (
	UartTxReady     uint32 = 1 << 0 // always set: no backpressure is modeled
	UartRxAvailable uint32 = 1 << 1 // a received byte is waiting in RX
	UartIRQEnable   uint32 = 1 << 7 // raise the pending flag on RX (never delivered)
)

// UART register offsets from the device base address.
const (
	UartRegTx     = 0x00 // W, low byte transmitted
	UartRegStatus = 0x04 // R/W, TX_READY and RX_AVAILABLE are read-only
	UartRegRx     = 0x08 // R, pops the buffered byte
)

// UartBackend connects a UART to the outside world. ReadByte returns the
// next available input byte, if any; WriteByte emits one output byte.
type UartBackend interface {
	ReadByte() (byte, bool)
	WriteByte(byte)
}

// writerBackend is an output-only backend over an io.Writer.
type writerBackend struct {
	w io.Writer
}

func (b *writerBackend) ReadByte() (byte, bool) { return 0, false }

func (b *writerBackend) WriteByte(c byte) {
	if b.w != nil {
		_, _ = b.w.Write([]byte{c})
	}
}

// WriterBackend returns an output-only UART backend that appends each
// transmitted byte to w. A nil writer discards output.
func WriterBackend(w io.Writer) UartBackend {
	return &writerBackend{w: w}
}

// Uart is the serial port. A store to TX is an observable side effect:
// the low byte goes to the backend immediately, unbuffered, in store
// order. Received bytes are polled from the backend one at a time during
// Tick and held in a one-byte buffer until software reads RX.
type Uart struct {
	backend UartBackend
	status  uint32
	rxBuf   byte
	rxFull  bool
	pending bool
}

// NewUart creates a UART connected to the given backend.
func NewUart(backend UartBackend) *Uart {
	return &Uart{
		backend: backend,
		status:  UartTxReady,
	}
}

// Status returns the status register. TX_READY is always set.
func (u *Uart) Status() uint32 {
	s := u.status | UartTxReady
	if u.rxFull {
		s |= UartRxAvailable
	}
	return s
}

// SetStatus writes the status register. The TX_READY and RX_AVAILABLE
// bits are read-only and are masked off. Clearing IRQ_ENABLE also clears
// a pending IRQ flag.
func (u *Uart) SetStatus(v uint32) {
	u.status = v &^ (UartTxReady | UartRxAvailable)
	if u.status&UartIRQEnable == 0 {
		u.pending = false
	}
}

// WriteTx transmits one byte.
func (u *Uart) WriteTx(c byte) {
	u.backend.WriteByte(c)
}

// ReadRx pops the buffered input byte, clearing RX_AVAILABLE. Reading
// with nothing buffered yields 0.
func (u *Uart) ReadRx() byte {
	if !u.rxFull {
		return 0
	}
	u.rxFull = false
	u.pending = false
	return u.rxBuf
}

// IRQPending reports whether an RX arrival has been flagged and not yet
// consumed.
func (u *Uart) IRQPending() bool { return u.pending }

// Tick polls the backend for input. With a byte already buffered the
// backend is left alone, so no input is dropped.
func (u *Uart) Tick() {
	if u.rxFull {
		return
	}
	c, ok := u.backend.ReadByte()
	if !ok {
		return
	}
	u.rxBuf = c
	u.rxFull = true
	if u.status&UartIRQEnable != 0 {
		u.pending = true
	}
}
