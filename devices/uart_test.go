package devices_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/novasim/nova32/devices"
)

// queueBackend feeds a fixed byte sequence and records output.
type queueBackend struct {
	input  []byte
	output []byte
}

func (b *queueBackend) ReadByte() (byte, bool) {
	if len(b.input) == 0 {
		return 0, false
	}
	c := b.input[0]
	b.input = b.input[1:]
	return c, true
}

func (b *queueBackend) WriteByte(c byte) {
	b.output = append(b.output, c)
}

var _ = Describe("Uart", func() {
	It("should always report TX_READY", func() {
		uart := devices.NewUart(devices.WriterBackend(nil))

		Expect(uart.Status() & devices.UartTxReady).ToNot(BeZero())

		uart.SetStatus(0)
		Expect(uart.Status() & devices.UartTxReady).ToNot(BeZero())
	})

	It("should transmit bytes in store order", func() {
		var out bytes.Buffer
		uart := devices.NewUart(devices.WriterBackend(&out))

		uart.WriteTx('H')
		uart.WriteTx('I')
		uart.WriteTx('\n')

		Expect(out.String()).To(Equal("HI\n"))
	})

	Describe("receive path", func() {
		var (
			backend *queueBackend
			uart    *devices.Uart
		)

		BeforeEach(func() {
			backend = &queueBackend{input: []byte("ab")}
			uart = devices.NewUart(backend)
		})

		It("should buffer one byte per tick", func() {
			Expect(uart.Status() & devices.UartRxAvailable).To(BeZero())

			uart.Tick()

			Expect(uart.Status() & devices.UartRxAvailable).ToNot(BeZero())
			Expect(uart.ReadRx()).To(Equal(byte('a')))
			Expect(uart.Status() & devices.UartRxAvailable).To(BeZero())
		})

		It("should not drop input while a byte is buffered", func() {
			uart.Tick()
			uart.Tick()
			uart.Tick()

			Expect(uart.ReadRx()).To(Equal(byte('a')))
			uart.Tick()
			Expect(uart.ReadRx()).To(Equal(byte('b')))
		})

		It("should read zero with nothing buffered", func() {
			Expect(uart.ReadRx()).To(Equal(byte(0)))
		})

		It("should flag an IRQ on arrival only with IRQ_ENABLE", func() {
			uart.Tick()
			Expect(uart.IRQPending()).To(BeFalse())

			uart.ReadRx()
			uart.SetStatus(devices.UartIRQEnable)
			uart.Tick()

			Expect(uart.IRQPending()).To(BeTrue())
		})

		It("should clear the pending flag when IRQ_ENABLE is cleared", func() {
			uart.SetStatus(devices.UartIRQEnable)
			uart.Tick()
			Expect(uart.IRQPending()).To(BeTrue())

			uart.SetStatus(0)

			Expect(uart.IRQPending()).To(BeFalse())
		})
	})
})
