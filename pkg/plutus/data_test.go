package plutus

import (
	"encoding/hex"
	"reflect"
	"strings"
	"testing"
)

func TestEncodeDecode_Roundtrip(t *testing.T) {
	tests := []struct {
		name string
		data Data
	}{
		{
			name: "empty constructor",
			data: Constr{Tag: 0},
		},
		{
			name: "redeemer variant",
			data: Constr{Tag: 1},
		},
		{
			name: "bytes and int fields",
			data: Constr{Tag: 0, Fields: []Data{Bytes("hello"), Int(42)}},
		},
		{
			name: "negative int",
			data: Constr{Tag: 0, Fields: []Data{Int(-7)}},
		},
		{
			name: "nested list",
			data: List{Int(1), List{Bytes("a"), Bytes("b")}},
		},
		{
			name: "metadata-shaped datum",
			data: Constr{Tag: 0, Fields: []Data{
				Map{
					{K: Bytes("name"), V: Bytes("Course Token")},
					{K: Bytes("_pk"), V: Bytes{0xde, 0xad, 0xbe, 0xef}},
				},
				Int(1),
			}},
		},
		{
			name: "high constructor tag",
			data: Constr{Tag: 10, Fields: []Data{Int(3)}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Encode(tc.data)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !equalData(got, tc.data) {
				t.Errorf("roundtrip mismatch: got %#v, want %#v", got, tc.data)
			}
		})
	}
}

func TestEncode_EmptyConstrWire(t *testing.T) {
	raw, err := Encode(Constr{Tag: 0})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// Tag 121 (0xd8 0x79) followed by an empty array.
	if got, want := hex.EncodeToString(raw), "d87980"; got != want {
		t.Errorf("wire mismatch: got %s, want %s", got, want)
	}

	raw, err = Encode(Constr{Tag: 1})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if got, want := hex.EncodeToString(raw), "d87a80"; got != want {
		t.Errorf("wire mismatch: got %s, want %s", got, want)
	}
}

func TestDecodeHex_Invalid(t *testing.T) {
	if _, err := DecodeHex("zz"); err == nil {
		t.Error("expected error for non-hex input")
	}
	if _, err := DecodeHex("ff"); err == nil {
		t.Error("expected error for malformed CBOR")
	}
}

func TestToJSON_DetailedSchema(t *testing.T) {
	d := Constr{Tag: 0, Fields: []Data{
		Map{{K: Bytes("k"), V: Bytes("v")}},
		Int(1),
	}}
	raw, err := ToJSON(d)
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	got := string(raw)
	for _, want := range []string{`"constructor":0`, `"int":1`, `"bytes":"6b"`, `"bytes":"76"`, `"map":`} {
		if !strings.Contains(got, want) {
			t.Errorf("schema output %s missing %s", got, want)
		}
	}
}

// equalData compares two values ignoring map pair order, which the decoder
// does not preserve.
func equalData(a, b Data) bool {
	am, aok := a.(Map)
	bm, bok := b.(Map)
	if aok && bok {
		if len(am) != len(bm) {
			return false
		}
		for _, pa := range am {
			found := false
			for _, pb := range bm {
				if equalData(pa.K, pb.K) && equalData(pa.V, pb.V) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}

	ac, aok := a.(Constr)
	bc, bok := b.(Constr)
	if aok && bok {
		if ac.Tag != bc.Tag || len(ac.Fields) != len(bc.Fields) {
			return false
		}
		for i := range ac.Fields {
			if !equalData(ac.Fields[i], bc.Fields[i]) {
				return false
			}
		}
		return true
	}

	al, aok := a.(List)
	bl, bok := b.(List)
	if aok && bok {
		if len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !equalData(al[i], bl[i]) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(a, b)
}
