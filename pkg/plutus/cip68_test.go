package plutus

import (
	"encoding/hex"
	"reflect"
	"testing"
)

func TestAssetNameLabels(t *testing.T) {
	if got, want := RefAssetName("cert"), "000643b0"+hex.EncodeToString([]byte("cert")); got != want {
		t.Errorf("RefAssetName: got %s, want %s", got, want)
	}
	if got, want := UserAssetName("cert"), "000de140"+hex.EncodeToString([]byte("cert")); got != want {
		t.Errorf("UserAssetName: got %s, want %s", got, want)
	}
}

func TestMetadataDatum_RejectsReservedKey(t *testing.T) {
	_, err := MetadataDatum(map[string]string{"_pk": "boom"}, []byte{0x01})
	if err == nil {
		t.Fatal("expected error for reserved key")
	}
}

func TestMetadataDatum_RequiresOwner(t *testing.T) {
	_, err := MetadataDatum(map[string]string{"name": "x"}, nil)
	if err == nil {
		t.Fatal("expected error for missing owner hash")
	}
}

func TestMetadata_Roundtrip(t *testing.T) {
	owner := []byte{0xaa, 0xbb, 0xcc}
	meta := map[string]string{
		"name":        "Course Certificate",
		"description": "Completion of course 101",
	}

	datum, err := MetadataDatum(meta, owner)
	if err != nil {
		t.Fatalf("MetadataDatum failed: %v", err)
	}
	datumHex, err := EncodeHex(datum)
	if err != nil {
		t.Fatalf("EncodeHex failed: %v", err)
	}

	decoded, err := DecodeMetadata(datumHex, false)
	if err != nil {
		t.Fatalf("DecodeMetadata failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, meta) {
		t.Errorf("metadata mismatch: got %v, want %v", decoded, meta)
	}

	withOwner, err := DecodeMetadata(datumHex, true)
	if err != nil {
		t.Fatalf("DecodeMetadata with owner failed: %v", err)
	}
	if got, want := withOwner["_pk"], hex.EncodeToString(owner); got != want {
		t.Errorf("owner mismatch: got %s, want %s", got, want)
	}
	if len(withOwner) != len(meta)+1 {
		t.Errorf("unexpected key count: got %d, want %d", len(withOwner), len(meta)+1)
	}
}

func TestDatumOwner(t *testing.T) {
	owner := []byte{0x01, 0x02, 0x03, 0x04}
	datum, err := MetadataDatum(map[string]string{"name": "x"}, owner)
	if err != nil {
		t.Fatalf("MetadataDatum failed: %v", err)
	}
	datumHex, err := EncodeHex(datum)
	if err != nil {
		t.Fatalf("EncodeHex failed: %v", err)
	}

	got, err := DatumOwner(datumHex)
	if err != nil {
		t.Fatalf("DatumOwner failed: %v", err)
	}
	if want := hex.EncodeToString(owner); got != want {
		t.Errorf("owner mismatch: got %s, want %s", got, want)
	}
}

func TestDatumOwner_MissingField(t *testing.T) {
	datum := Constr{Tag: 0, Fields: []Data{
		Map{{K: Bytes("name"), V: Bytes("x")}},
		Int(1),
	}}
	datumHex, err := EncodeHex(datum)
	if err != nil {
		t.Fatalf("EncodeHex failed: %v", err)
	}
	if _, err := DatumOwner(datumHex); err == nil {
		t.Error("expected error for datum without owner field")
	}
}

func TestDecodeMetadata_NotAMetadataDatum(t *testing.T) {
	datumHex, err := EncodeHex(List{Int(1)})
	if err != nil {
		t.Fatalf("EncodeHex failed: %v", err)
	}
	if _, err := DecodeMetadata(datumHex, false); err == nil {
		t.Error("expected error for non-metadata datum")
	}
}
