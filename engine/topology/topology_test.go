package topology

import (
	"testing"

	"github.com/Sheetlar/arxml/engine/conversion"
)

func TestSenderReceiverRendering(t *testing.T) {
	a := &Ecu{Name: "A"}
	b := &Ecu{Name: "B"}
	tests := []struct {
		name string
		ecus []*Ecu
		want string
	}{
		{"none", nil, "UnknownECU"},
		{"one", []*Ecu{a}, "A"},
		{"two", []*Ecu{a, b}, "A_or_B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &CanFrame{Providers: tt.ecus, Consumers: tt.ecus}
			if got := f.Sender(); got != tt.want {
				t.Errorf("Sender() = %q, want %q", got, tt.want)
			}
			if got := f.Receiver(); got != tt.want {
				t.Errorf("Receiver() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFrameWithoutConsumers(t *testing.T) {
	f := &CanFrame{Providers: []*Ecu{{Name: "A"}}}
	if f.Sender() != "A" || f.Receiver() != UnknownEcu {
		t.Fatalf("expected A -> UnknownECU, got %s -> %s", f.Sender(), f.Receiver())
	}
}

func TestSystemAccessorsReturnCopies(t *testing.T) {
	ecus := []*Ecu{{Ref: "/E/A", Name: "A"}}
	sys := NewSystem("/S/Sys", "Sys", ecus, nil, nil)

	ecus[0] = &Ecu{Ref: "/E/B", Name: "B"}
	if got := sys.Ecus()[0].Name; got != "A" {
		t.Fatalf("expected snapshot to keep A, got %s", got)
	}

	out := sys.Ecus()
	out[0] = nil
	if sys.Ecus()[0] == nil {
		t.Fatal("caller mutation leaked into system")
	}

	if _, ok := sys.Ecu("/E/A"); !ok {
		t.Fatal("expected ECU /E/A")
	}
	if _, ok := sys.Ecu("/E/B"); ok {
		t.Fatal("unexpected ECU /E/B")
	}
}

func TestSignalDecode(t *testing.T) {
	s := &Signal{Name: "Speed", Conversion: conversion.Linear{A: 0.5}}
	v, err := s.Decode(240)
	if err != nil {
		t.Fatal(err)
	}
	if v.Number != 120 {
		t.Fatalf("expected 120, got %v", v)
	}

	raw := &Signal{Name: "Raw"}
	v, err = raw.Decode(7)
	if err != nil || v.Number != 7 {
		t.Fatalf("expected pass-through 7, got %v (%v)", v, err)
	}
}

func TestSummarize(t *testing.T) {
	a := &Ecu{Ref: "/E/A", Name: "A"}
	speed := &Signal{Ref: "/S/Speed", Name: "Speed"}
	frame := &CanFrame{
		Name:      "F1",
		ID:        0x100,
		Length:    8,
		Providers: []*Ecu{a},
		Signals:   []SignalPlacement{{Signal: speed, StartBit: 0}},
	}
	sys := NewSystem("/Sys", "Sys", []*Ecu{a}, []*Signal{speed}, []*CanChannel{
		{Name: "CH1", Cluster: "CAN1", Baudrate: 500000, Frames: []*CanFrame{frame}},
	})

	sum := Summarize(sys, 2)
	if sum.System != "Sys" || sum.Signals != 1 || sum.Frames != 1 || sum.Diagnostics != 2 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	fs := sum.Channels[0].Frames[0]
	if fs.Sender != "A" || fs.Receiver != UnknownEcu || fs.Signals[0] != "Speed" {
		t.Fatalf("unexpected frame summary: %+v", fs)
	}
	if len(sys.Frames()) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(sys.Frames()))
	}
}
