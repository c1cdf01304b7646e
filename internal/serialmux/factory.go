package serialmux

import (
	"fmt"

	"go.bug.st/serial"
)

var _ SerialMuxInterface = (*SerialMux[SerialPorter])(nil)

// NewRealSerialMux creates a SerialMux instance backed by a real serial port at the
// given path using the provided serial options.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	mode, err := opts.Mode()
	if err != nil {
		return nil, err
	}
	return OpenSerialMux(SerialPortOpener(openSerialPort), path, mode)
}

// OpenSerialMux opens a port through factory and wraps it in a SerialMux.
func OpenSerialMux(factory SerialPortFactory, path string, mode *SerialPortMode) (*SerialMux[SerialPorter], error) {
	if mode == nil {
		mode = DefaultSerialPortMode()
	}
	port, err := factory.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open CAN adapter at %s: %w", path, err)
	}
	return NewSerialMux[SerialPorter](port), nil
}

// openSerialPort opens a port with go.bug.st/serial.
func openSerialPort(path string, mode *SerialPortMode) (SerialPorter, error) {
	m := &serial.Mode{
		BaudRate: mode.BaudRate,
		DataBits: mode.DataBits,
	}
	switch mode.Parity {
	case OddParity:
		m.Parity = serial.OddParity
	case EvenParity:
		m.Parity = serial.EvenParity
	default:
		m.Parity = serial.NoParity
	}
	switch mode.StopBits {
	case TwoStopBits:
		m.StopBits = serial.TwoStopBits
	default:
		m.StopBits = serial.OneStopBit
	}

	port, err := serial.Open(path, m)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// ListPorts returns the serial ports present on the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
