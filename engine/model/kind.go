package model

// Kind identifies the concrete entity type behind an Entity.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindPackage
	KindSystem
	KindSystemMapping
	KindEcuInstance
	KindCommunicationController
	KindCommunicationConnector
	KindCommPort
	KindCanCluster
	KindOtherCluster
	KindCanPhysicalChannel
	KindCanFrameTriggering
	KindPduTriggering
	KindCanFrame
	KindISignalIPdu
	KindISignal
	KindSystemSignal
	KindSwBaseType
	KindCompuMethod
	KindUnit
)

var kindNames = [...]string{
	KindUnknown:                 "unknown",
	KindPackage:                 "package",
	KindSystem:                  "system",
	KindSystemMapping:           "system-mapping",
	KindEcuInstance:             "ecu-instance",
	KindCommunicationController: "communication-controller",
	KindCommunicationConnector:  "communication-connector",
	KindCommPort:                "comm-port",
	KindCanCluster:              "can-cluster",
	KindOtherCluster:            "cluster",
	KindCanPhysicalChannel:      "can-physical-channel",
	KindCanFrameTriggering:      "can-frame-triggering",
	KindPduTriggering:           "pdu-triggering",
	KindCanFrame:                "can-frame",
	KindISignalIPdu:             "i-signal-i-pdu",
	KindISignal:                 "i-signal",
	KindSystemSignal:            "system-signal",
	KindSwBaseType:              "sw-base-type",
	KindCompuMethod:             "compu-method",
	KindUnit:                    "unit",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// Role names a group of owned children. An element may own children under
// several roles; lookups by short name search all of them.
type Role string

const (
	RolePackages         Role = "packages"
	RoleElements         Role = "elements"
	RoleMappings         Role = "mappings"
	RoleConnectors       Role = "connectors"
	RoleControllers      Role = "controllers"
	RolePorts            Role = "ports"
	RoleChannels         Role = "channels"
	RoleFrameTriggerings Role = "frame-triggerings"
	RolePduTriggerings   Role = "pdu-triggerings"
)

// Direction is the communication direction of a port.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// PortKind distinguishes the port flavours an ECU connector may own.
type PortKind string

const (
	FramePort   PortKind = "frame"
	IPduPort    PortKind = "i-pdu"
	ISignalPort PortKind = "i-signal"
)

// ByteOrder is the packing byte order of a signal or PDU.
type ByteOrder string

const (
	MostSignificantByteFirst ByteOrder = "MOST-SIGNIFICANT-BYTE-FIRST"
	MostSignificantByteLast  ByteOrder = "MOST-SIGNIFICANT-BYTE-LAST"
	ByteOrderOpaque          ByteOrder = "OPAQUE"
)
