package cardano

import (
	"fmt"

	"cardano-forge/pkg/plutus"
)

// The builder describes a transaction as an immutable list of instruction
// values and hands the finished Plan to an Engine. Nothing here talks to the
// chain; a Plan is pure data.

type MintAction struct {
	PolicyID      string
	AssetNameHex  string
	Quantity      int64
	ScriptCborHex string
	Redeemer      plutus.Data
}

func (m MintAction) Unit() string {
	return m.PolicyID + m.AssetNameHex
}

// ScriptInput spends a script-locked UTxO with the given validator and
// redeemer. The datum is inline at the output being spent. Assets records
// the non-ADA value the spent UTxO brings into the transaction, so input
// selection does not look for those units in the wallet.
type ScriptInput struct {
	TxHash        string
	Index         int
	Assets        map[string]int64
	ScriptCborHex string
	Redeemer      plutus.Data
}

func (s ScriptInput) Ref() string {
	return fmt.Sprintf("%s#%d", s.TxHash, s.Index)
}

// Output carries assets (unit -> quantity) to an address, optionally with an
// inline datum. Lovelace is attached by the engine when it balances the
// transaction.
type Output struct {
	Address string
	Assets  map[string]int64
	Datum   plutus.Data
}

type Plan struct {
	Mints           []MintAction
	ScriptInputs    []ScriptInput
	Outputs         []Output
	RequiredSigners []string
	ChangeAddress   string
	Network         string
}

// addOutput appends an output, coalescing datum-less outputs to the same
// address into one. Outputs carrying a datum always stand alone.
func (p *Plan) addOutput(out Output) {
	if out.Datum == nil {
		for i := range p.Outputs {
			if p.Outputs[i].Datum == nil && p.Outputs[i].Address == out.Address {
				for unit, qty := range out.Assets {
					p.Outputs[i].Assets[unit] += qty
				}
				return
			}
		}
	}
	p.Outputs = append(p.Outputs, out)
}

// Redeemer variants understood by the validators. Minting and the first
// burn branch share the policy script; the constructor index selects the
// validation branch.
func MintRedeemer() plutus.Data {
	return plutus.Constr{Tag: 0}
}

func BurnRedeemer() plutus.Data {
	return plutus.Constr{Tag: 1}
}

// SpendRedeemer is the zero-argument redeemer for spending a store UTxO.
func SpendRedeemer() plutus.Data {
	return plutus.Constr{Tag: 0}
}
