// Package topology holds the extracted, read-only view of a vehicle network:
// ECUs, CAN channels and frames with their senders and receivers, and the
// signals they carry.
package topology

import (
	"strings"

	"github.com/Sheetlar/arxml/engine/conversion"
)

const (
	// UnknownEcu is rendered for a frame end without any ECU.
	UnknownEcu = "UnknownECU"
	// EcuSeparator joins several ECU names of one frame end.
	EcuSeparator = "_or_"
)

// Ecu is an extracted ECU.
type Ecu struct {
	Ref               string
	Name              string
	DiagnosticAddress *int
}

// DataType is the base type of a signal.
type DataType struct {
	Ref         string
	Name        string
	Declaration string
	Size        int
	Encoding    string
}

// Signal is an extracted signal with its optional data type, unit and
// conversion. A nil Conversion passes raw values through.
type Signal struct {
	Ref          string
	Name         string
	SystemSignal string
	Policy       string
	Length       int
	InitValue    *float64
	DataType     *DataType
	Unit         string
	Conversion   conversion.Conversion
}

// Decode converts a raw bus value into its physical value.
func (s *Signal) Decode(raw float64) (conversion.Value, error) {
	return conversion.Evaluate(s.Conversion, raw)
}

// SignalPlacement locates a signal inside a frame.
type SignalPlacement struct {
	Signal    *Signal
	Pdu       string
	StartBit  int
	ByteOrder string
	UpdateBit *int
}

// CanFrame is a frame as triggered on one channel. Providers send it,
// consumers receive it.
type CanFrame struct {
	Ref            string
	Name           string
	FrameRef       string
	ID             uint32
	AddressingMode string
	Extended       bool
	Length         int
	RxBehavior     string
	TxBehavior     string
	Providers      []*Ecu
	Consumers      []*Ecu
	Signals        []SignalPlacement
}

// Sender renders the providing ECUs.
func (f *CanFrame) Sender() string { return renderEcus(f.Providers) }

// Receiver renders the consuming ECUs.
func (f *CanFrame) Receiver() string { return renderEcus(f.Consumers) }

func renderEcus(ecus []*Ecu) string {
	switch len(ecus) {
	case 0:
		return UnknownEcu
	case 1:
		return ecus[0].Name
	}
	names := make([]string, len(ecus))
	for i, e := range ecus {
		names[i] = e.Name
	}
	return strings.Join(names, EcuSeparator)
}

// CanChannel is a physical CAN channel with its frames.
type CanChannel struct {
	Ref           string
	Name          string
	Cluster       string
	Baudrate      uint64
	CanFdBaudrate uint64
	Frames        []*CanFrame
}

// System is the immutable result of extracting one system.
type System struct {
	ref      string
	name     string
	ecus     []*Ecu
	signals  []*Signal
	channels []*CanChannel
}

// NewSystem assembles an extracted system. The slices are copied.
func NewSystem(ref, name string, ecus []*Ecu, signals []*Signal, channels []*CanChannel) *System {
	return &System{
		ref:      ref,
		name:     name,
		ecus:     append([]*Ecu(nil), ecus...),
		signals:  append([]*Signal(nil), signals...),
		channels: append([]*CanChannel(nil), channels...),
	}
}

func (s *System) Ref() string  { return s.ref }
func (s *System) Name() string { return s.name }

// Ecus returns the extracted ECUs in fibex order.
func (s *System) Ecus() []*Ecu { return append([]*Ecu(nil), s.ecus...) }

// Signals returns the extracted signals in fibex order.
func (s *System) Signals() []*Signal { return append([]*Signal(nil), s.signals...) }

// Channels returns the extracted CAN channels.
func (s *System) Channels() []*CanChannel { return append([]*CanChannel(nil), s.channels...) }

// Frames returns the frames of every channel.
func (s *System) Frames() []*CanFrame {
	var out []*CanFrame
	for _, ch := range s.channels {
		out = append(out, ch.Frames...)
	}
	return out
}

// Ecu returns the ECU extracted from ref.
func (s *System) Ecu(ref string) (*Ecu, bool) {
	for _, e := range s.ecus {
		if e.Ref == ref {
			return e, true
		}
	}
	return nil, false
}

// Signal returns the signal extracted from ref.
func (s *System) Signal(ref string) (*Signal, bool) {
	for _, sig := range s.signals {
		if sig.Ref == ref {
			return sig, true
		}
	}
	return nil, false
}
