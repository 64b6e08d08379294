package cardano

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// plutusV2Tag is the language tag prefixed to script bytes before hashing,
// per the ledger script-hash rules (0=native, 1=V1, 2=V2, 3=V3).
const plutusV2Tag = 0x02

const keyHashLen = 28

// ScriptHash computes the ledger hash of a CBOR-wrapped PlutusV2 script:
// blake2b-224 over the language tag followed by the unwrapped script bytes.
// For a minting validator this hash is the policy id.
func ScriptHash(scriptCborHex string) (string, error) {
	wrapped, err := hex.DecodeString(scriptCborHex)
	if err != nil {
		return "", fmt.Errorf("script is not hex: %w", err)
	}
	var inner []byte
	if err := cbor.Unmarshal(wrapped, &inner); err != nil {
		return "", fmt.Errorf("script is not a CBOR byte string: %w", err)
	}

	h, err := blake2b.New(keyHashLen, nil)
	if err != nil {
		return "", err
	}
	h.Write([]byte{plutusV2Tag})
	h.Write(inner)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ScriptAddress builds the enterprise address (script payment credential, no
// staking part) for a script hash on the given network.
func ScriptAddress(scriptHashHex string, mainnet bool) (string, error) {
	hash, err := hex.DecodeString(scriptHashHex)
	if err != nil {
		return "", fmt.Errorf("script hash is not hex: %w", err)
	}
	if len(hash) != keyHashLen {
		return "", fmt.Errorf("script hash is %d bytes, want %d", len(hash), keyHashLen)
	}

	// Header nibbles: 0111 = script payment credential only, low nibble is
	// the network id.
	header := byte(0x70)
	hrp := "addr_test"
	if mainnet {
		header |= 0x01
		hrp = "addr"
	}

	payload := append([]byte{header}, hash...)
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, conv)
}

// PaymentKeyHash extracts the payment credential hash (hex) from a bech32
// Shelley address. It works for both key and script credentials; the header
// byte is not interpreted beyond being skipped.
func PaymentKeyHash(address string) (string, error) {
	hrp, data, err := bech32.DecodeNoLimit(address)
	if err != nil {
		return "", fmt.Errorf("decode address: %w", err)
	}
	if hrp != "addr" && hrp != "addr_test" {
		return "", fmt.Errorf("unexpected address prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("decode address payload: %w", err)
	}
	if len(raw) < 1+keyHashLen {
		return "", fmt.Errorf("address payload too short (%d bytes)", len(raw))
	}
	return hex.EncodeToString(raw[1 : 1+keyHashLen]), nil
}

// VerificationKeyHash hashes an ed25519 verification key (the cborHex payload
// of a cardano-cli vkey file) to its 28-byte credential hash.
func VerificationKeyHash(vkeyCborHex string) (string, error) {
	wrapped, err := hex.DecodeString(vkeyCborHex)
	if err != nil {
		return "", fmt.Errorf("verification key is not hex: %w", err)
	}
	var key []byte
	if err := cbor.Unmarshal(wrapped, &key); err != nil {
		return "", fmt.Errorf("verification key is not a CBOR byte string: %w", err)
	}

	h, err := blake2b.New(keyHashLen, nil)
	if err != nil {
		return "", err
	}
	h.Write(key)
	return hex.EncodeToString(h.Sum(nil)), nil
}
