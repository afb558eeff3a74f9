package model

import "github.com/Sheetlar/arxml/engine/registry"

// Entity is the closed set of referenceable model elements. Only types in
// this package implement it.
type Entity interface {
	Kind() Kind
	Ref() string
	ShortName() string
	element() *Element
}

// Element carries the attributes shared by every entity. The reference key
// and arena handle are assigned by the Session on registration.
type Element struct {
	Name     string
	Desc     string
	Category string

	ref    string
	handle registry.Handle
}

// Ref returns the absolute reference key, e.g. "/Cluster/CAN1".
func (e *Element) Ref() string { return e.ref }

// ShortName returns the element's short name.
func (e *Element) ShortName() string { return e.Name }

// Handle returns the arena handle assigned at registration.
func (e *Element) Handle() registry.Handle { return e.handle }

func (e *Element) element() *Element { return e }

// Package is an AR-PACKAGE. It owns sub-packages and elements.
type Package struct {
	Element
}

// System is the root of a vehicle network description.
type System struct {
	Element
	FibexElementRefs []string
}

// SystemMapping groups the mapping sections of a system. Extraction does not
// consume it; it keeps references below a system resolvable.
type SystemMapping struct {
	Element
}

// EcuInstance is an ECU attached to one or more buses through connectors.
type EcuInstance struct {
	Element
	DiagnosticAddress      *int
	SleepModeSupported     bool
	WakeUpOverBusSupported bool
}

// CommunicationController is a bus controller owned by an ECU.
type CommunicationController struct {
	Element
	WakeUpByControllerSupported bool
}

// CommunicationConnector connects an ECU controller to a physical channel and
// owns the ECU's communication ports.
type CommunicationConnector struct {
	Element
	ControllerRef string
}

// CommPort is a frame, PDU or signal port with a direction.
type CommPort struct {
	Element
	Port      PortKind
	Direction Direction
}

// CanCluster is a CAN bus with its conditional variants.
type CanCluster struct {
	Element
	Variants Variants[*CanClusterConditional]
}

// CanClusterConditional is one variant of a CAN cluster.
type CanClusterConditional struct {
	Baudrate        uint64
	CanFdBaudrate   uint64
	ProtocolName    string
	ProtocolVersion string
	// Channels are the physical channels of this variant, owned by the cluster.
	Channels []registry.Handle
}

// OtherCluster is a non-CAN cluster (FlexRay, Ethernet, LIN). It is modelled so
// that references resolve, but topology extraction does not support it.
type OtherCluster struct {
	Element
	Bus string
}

// CanPhysicalChannel is a channel of a CAN cluster. It owns frame and PDU
// triggerings.
type CanPhysicalChannel struct {
	Element
	CommConnectorRefs []string
}

// CanFrameTriggering schedules a frame on a channel.
type CanFrameTriggering struct {
	Element
	Identifier        *uint32
	AddressingMode    string
	RxBehavior        string
	TxBehavior        string
	FrameRef          string
	FramePortRefs     []string
	PduTriggeringRefs []string
}

// PduTriggering schedules a PDU on a channel.
type PduTriggering struct {
	Element
	IPduRef  string
	PortRefs []string
}

// CanFrame is a CAN frame layout.
type CanFrame struct {
	Element
	Length      int
	PduMappings []PduToFrameMapping
}

// PduToFrameMapping places a PDU inside a frame.
type PduToFrameMapping struct {
	Name          string
	PduRef        string
	ByteOrder     ByteOrder
	StartPosition int
	UpdateBit     *int
}

// ISignalIPdu is a PDU carrying signals.
type ISignalIPdu struct {
	Element
	Length         int
	SignalMappings []SignalToPduMapping
}

// SignalToPduMapping places a signal inside a PDU.
type SignalToPduMapping struct {
	Name          string
	SignalRef     string
	ByteOrder     ByteOrder
	StartPosition int
	UpdateBit     *int
}

// ISignal is a signal as transmitted on the bus.
type ISignal struct {
	Element
	SystemSignalRef       string
	DataTypePolicy        string
	Length                int
	InitValue             *float64
	NetworkRepresentation Variants[SwDataDefProps]
}

// SystemSignal is the logical signal an ISignal transmits.
type SystemSignal struct {
	Element
	Dynamic       bool
	PhysicalProps Variants[SwDataDefProps]
}

// SwDataDefProps is one conditional set of data definition properties.
type SwDataDefProps struct {
	BaseTypeRef    string
	CompuMethodRef string
	UnitRef        string
}

// SwBaseType is a platform base type.
type SwBaseType struct {
	Element
	Size              int
	Encoding          string
	NativeDeclaration string
}

// CompuMethod describes how raw values map to physical values. Its category
// (IDENTICAL, LINEAR, TEXTTABLE, ...) is Element.Category.
type CompuMethod struct {
	Element
	UnitRef   string
	IntToPhys []CompuScale
}

// Unit is a physical unit.
type Unit struct {
	Element
	DisplayName string
}

// LimitKind is the interval type of a compu scale limit.
type LimitKind string

const (
	LimitClosed   LimitKind = "CLOSED"
	LimitOpen     LimitKind = "OPEN"
	LimitInfinite LimitKind = "INFINITE"
)

// Limit is a lower or upper bound of a compu scale.
type Limit struct {
	Value float64
	Kind  LimitKind
}

// CompuConst is a constant scale result: a text (VT) or a number (V).
type CompuConst struct {
	Text  *string
	Value *float64
}

// RationalCoeffs holds numerator and denominator coefficients in ascending
// degree.
type RationalCoeffs struct {
	Numerator   []float64
	Denominator []float64
}

// CompuScale is one interval of a compu method.
type CompuScale struct {
	Lower      *Limit
	Upper      *Limit
	ShortLabel string
	Symbol     string
	Mask       *uint64
	Const      *CompuConst
	Rational   *RationalCoeffs
}

// Offset is the constant numerator term, 0 when absent.
func (s CompuScale) Offset() float64 {
	if s.Rational == nil || len(s.Rational.Numerator) == 0 {
		return 0
	}
	return s.Rational.Numerator[0]
}

// Factor is the linear numerator term, 0 when absent.
func (s CompuScale) Factor() float64 {
	if s.Rational == nil || len(s.Rational.Numerator) < 2 {
		return 0
	}
	return s.Rational.Numerator[1]
}

// Divisor is the constant denominator term, 1 when absent.
func (s CompuScale) Divisor() float64 {
	if s.Rational == nil || len(s.Rational.Denominator) == 0 {
		return 1
	}
	return s.Rational.Denominator[0]
}

func (*Package) Kind() Kind                 { return KindPackage }
func (*System) Kind() Kind                  { return KindSystem }
func (*SystemMapping) Kind() Kind           { return KindSystemMapping }
func (*EcuInstance) Kind() Kind             { return KindEcuInstance }
func (*CommunicationController) Kind() Kind { return KindCommunicationController }
func (*CommunicationConnector) Kind() Kind  { return KindCommunicationConnector }
func (*CommPort) Kind() Kind                { return KindCommPort }
func (*CanCluster) Kind() Kind              { return KindCanCluster }
func (*OtherCluster) Kind() Kind            { return KindOtherCluster }
func (*CanPhysicalChannel) Kind() Kind      { return KindCanPhysicalChannel }
func (*CanFrameTriggering) Kind() Kind      { return KindCanFrameTriggering }
func (*PduTriggering) Kind() Kind           { return KindPduTriggering }
func (*CanFrame) Kind() Kind                { return KindCanFrame }
func (*ISignalIPdu) Kind() Kind             { return KindISignalIPdu }
func (*ISignal) Kind() Kind                 { return KindISignal }
func (*SystemSignal) Kind() Kind            { return KindSystemSignal }
func (*SwBaseType) Kind() Kind              { return KindSwBaseType }
func (*CompuMethod) Kind() Kind             { return KindCompuMethod }
func (*Unit) Kind() Kind                    { return KindUnit }
