// Package plutus models Plutus data values and the codecs the service needs
// for them: CBOR (the on-chain inline-datum wire form) and the cardano-cli
// "detailed schema" JSON used for script, datum and redeemer files.
package plutus

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Data is a Plutus data value: constructor, byte string, integer, list or map.
type Data interface {
	isData()
}

type (
	// Constr is a tagged constructor application. On the wire, tags 0..6
	// map to CBOR tags 121..127, 7..127 to 1280..1400, the rest to the
	// general constructor tag 102.
	Constr struct {
		Tag    uint64
		Fields []Data
	}

	Bytes []byte

	Int int64

	List []Data

	// Map is a list of key/value pairs. Encoding is canonical (sorted),
	// which is what every datum this service writes uses; pair order after
	// a decode is unspecified.
	Map []Pair

	Pair struct {
		K Data
		V Data
	}
)

func (Constr) isData() {}
func (Bytes) isData()  {}
func (Int) isData()    {}
func (List) isData()   {}
func (Map) isData()    {}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		MapKeyByteString: cbor.MapKeyByteStringAllowed,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Encode serializes a Plutus data value to CBOR.
func Encode(d Data) ([]byte, error) {
	v, err := toCBOR(d)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(v)
}

// EncodeHex is Encode with a hex-encoded result, the form used for
// script parameters and provider payloads.
func EncodeHex(d Data) (string, error) {
	raw, err := Encode(d)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// Decode parses CBOR into a Plutus data value.
func Decode(raw []byte) (Data, error) {
	var v interface{}
	if err := decMode.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode plutus data: %w", err)
	}
	return fromCBOR(v)
}

// DecodeHex is Decode over a hex string, the form inline datums arrive in
// from the chain indexing provider.
func DecodeHex(s string) (Data, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode plutus data hex: %w", err)
	}
	return Decode(raw)
}

func constrTag(tag uint64) (uint64, bool) {
	switch {
	case tag < 7:
		return 121 + tag, true
	case tag < 128:
		return 1280 + tag - 7, true
	default:
		return 102, false
	}
}

func toCBOR(d Data) (interface{}, error) {
	switch v := d.(type) {
	case Constr:
		fields := make([]interface{}, len(v.Fields))
		for i, f := range v.Fields {
			c, err := toCBOR(f)
			if err != nil {
				return nil, err
			}
			fields[i] = c
		}
		num, compact := constrTag(v.Tag)
		if !compact {
			return cbor.Tag{Number: num, Content: []interface{}{v.Tag, fields}}, nil
		}
		return cbor.Tag{Number: num, Content: fields}, nil
	case Bytes:
		return []byte(v), nil
	case Int:
		return int64(v), nil
	case List:
		out := make([]interface{}, len(v))
		for i, e := range v {
			c, err := toCBOR(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case Map:
		out := make(map[interface{}]interface{}, len(v))
		for _, p := range v {
			cv, err := toCBOR(p.V)
			if err != nil {
				return nil, err
			}
			switch k := p.K.(type) {
			case Bytes:
				out[cbor.ByteString(k)] = cv
			case Int:
				out[int64(k)] = cv
			default:
				return nil, fmt.Errorf("unsupported map key type %T", p.K)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported plutus data type %T", d)
	}
}

func fromCBOR(v interface{}) (Data, error) {
	switch c := v.(type) {
	case cbor.Tag:
		return constrFromTag(c)
	case []byte:
		return Bytes(c), nil
	case cbor.ByteString:
		return Bytes(c.Bytes()), nil
	case uint64:
		return Int(int64(c)), nil
	case int64:
		return Int(c), nil
	case []interface{}:
		out := make(List, len(c))
		for i, e := range c {
			d, err := fromCBOR(e)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(Map, 0, len(c))
		for k, mv := range c {
			kd, err := fromCBOR(k)
			if err != nil {
				return nil, err
			}
			vd, err := fromCBOR(mv)
			if err != nil {
				return nil, err
			}
			out = append(out, Pair{K: kd, V: vd})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported CBOR value %T", v)
	}
}

func constrFromTag(t cbor.Tag) (Data, error) {
	var tag uint64
	content := t.Content
	switch {
	case t.Number >= 121 && t.Number <= 127:
		tag = t.Number - 121
	case t.Number >= 1280 && t.Number <= 1400:
		tag = t.Number - 1280 + 7
	case t.Number == 102:
		pair, ok := t.Content.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("malformed general constructor tag")
		}
		n, ok := pair[0].(uint64)
		if !ok {
			return nil, fmt.Errorf("malformed general constructor index")
		}
		tag = n
		content = pair[1]
	default:
		return nil, fmt.Errorf("unexpected CBOR tag %d", t.Number)
	}

	raw, ok := content.([]interface{})
	if !ok {
		return nil, fmt.Errorf("constructor fields are not a list")
	}
	fields := make([]Data, len(raw))
	for i, f := range raw {
		d, err := fromCBOR(f)
		if err != nil {
			return nil, err
		}
		fields[i] = d
	}
	return Constr{Tag: tag, Fields: fields}, nil
}

// ToJSON renders a Plutus data value in the cardano-cli detailed schema,
// e.g. {"constructor":0,"fields":[{"bytes":"00"},{"int":1}]}.
func ToJSON(d Data) ([]byte, error) {
	v, err := toSchema(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func toSchema(d Data) (interface{}, error) {
	switch v := d.(type) {
	case Constr:
		fields := make([]interface{}, len(v.Fields))
		for i, f := range v.Fields {
			s, err := toSchema(f)
			if err != nil {
				return nil, err
			}
			fields[i] = s
		}
		return map[string]interface{}{"constructor": v.Tag, "fields": fields}, nil
	case Bytes:
		return map[string]interface{}{"bytes": hex.EncodeToString(v)}, nil
	case Int:
		return map[string]interface{}{"int": int64(v)}, nil
	case List:
		items := make([]interface{}, len(v))
		for i, e := range v {
			s, err := toSchema(e)
			if err != nil {
				return nil, err
			}
			items[i] = s
		}
		return map[string]interface{}{"list": items}, nil
	case Map:
		pairs := make([]interface{}, len(v))
		for i, p := range v {
			k, err := toSchema(p.K)
			if err != nil {
				return nil, err
			}
			val, err := toSchema(p.V)
			if err != nil {
				return nil, err
			}
			pairs[i] = map[string]interface{}{"k": k, "v": val}
		}
		return map[string]interface{}{"map": pairs}, nil
	default:
		return nil, fmt.Errorf("unsupported plutus data type %T", d)
	}
}
