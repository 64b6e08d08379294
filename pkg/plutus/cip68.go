package plutus

import (
	"encoding/hex"
	"fmt"
	"sort"
)

// CIP-67 asset-name label prefixes. The reference token carries the (100)
// label, the user token the (222) label; both are followed by the hex of the
// human-readable asset name.
const (
	RefLabel  = "000643b0"
	UserLabel = "000de140"
)

// Datum version carried in every CIP-68 metadata datum this service writes.
const MetadataVersion = 1

// ownerKey is the reserved metadata field holding the issuer's payment
// public-key hash as raw bytes.
const ownerKey = "_pk"

// RefAssetName returns the on-chain hex name of the reference token.
func RefAssetName(assetName string) string {
	return RefLabel + hex.EncodeToString([]byte(assetName))
}

// UserAssetName returns the on-chain hex name of the user token.
func UserAssetName(assetName string) string {
	return UserLabel + hex.EncodeToString([]byte(assetName))
}

// MetadataDatum builds the CIP-68 inline datum for a reference token:
// constr 0 [metadata map, version]. Keys are sorted so the datum is
// deterministic for a given metadata set. ownerPKH is stored raw under the
// reserved owner field.
func MetadataDatum(meta map[string]string, ownerPKH []byte) (Constr, error) {
	if _, ok := meta[ownerKey]; ok {
		return Constr{}, fmt.Errorf("metadata may not set the reserved %s field", ownerKey)
	}
	if len(ownerPKH) == 0 {
		return Constr{}, fmt.Errorf("owner public-key hash is required")
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := make(Map, 0, len(meta)+1)
	for _, k := range keys {
		m = append(m, Pair{K: Bytes(k), V: Bytes(meta[k])})
	}
	m = append(m, Pair{K: Bytes(ownerKey), V: Bytes(ownerPKH)})

	return Constr{Tag: 0, Fields: []Data{m, Int(MetadataVersion)}}, nil
}

// DecodeMetadata parses a CIP-68 inline datum back into its key/value map.
// When includeOwner is set, the reserved owner field is included with its
// value hex-encoded; otherwise it is stripped.
func DecodeMetadata(datumHex string, includeOwner bool) (map[string]string, error) {
	d, err := DecodeHex(datumHex)
	if err != nil {
		return nil, err
	}
	m, err := metadataMap(d)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(m))
	for _, p := range m {
		k, ok := p.K.(Bytes)
		if !ok {
			return nil, fmt.Errorf("metadata key is not a byte string")
		}
		v, ok := p.V.(Bytes)
		if !ok {
			return nil, fmt.Errorf("metadata value for %q is not a byte string", string(k))
		}
		if string(k) == ownerKey {
			if includeOwner {
				out[ownerKey] = hex.EncodeToString(v)
			}
			continue
		}
		out[string(k)] = string(v)
	}
	return out, nil
}

// DatumOwner extracts only the owner public-key hash (hex) from a CIP-68
// inline datum.
func DatumOwner(datumHex string) (string, error) {
	d, err := DecodeHex(datumHex)
	if err != nil {
		return "", err
	}
	m, err := metadataMap(d)
	if err != nil {
		return "", err
	}
	for _, p := range m {
		if k, ok := p.K.(Bytes); ok && string(k) == ownerKey {
			v, ok := p.V.(Bytes)
			if !ok {
				return "", fmt.Errorf("owner field is not a byte string")
			}
			return hex.EncodeToString(v), nil
		}
	}
	return "", fmt.Errorf("datum has no %s field", ownerKey)
}

func metadataMap(d Data) (Map, error) {
	c, ok := d.(Constr)
	if !ok || c.Tag != 0 || len(c.Fields) < 2 {
		return nil, fmt.Errorf("datum is not a CIP-68 metadata constructor")
	}
	m, ok := c.Fields[0].(Map)
	if !ok {
		return nil, fmt.Errorf("datum metadata field is not a map")
	}
	return m, nil
}
