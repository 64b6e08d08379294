package plutus

import (
	"encoding/json"
	"fmt"
	"os"
)

// Blueprint is the compiled-contract descriptor emitted by the contract
// toolchain (an aiken plutus.json): validator titles mapped to compiled,
// CBOR-wrapped Plutus code. The bytecode itself is opaque here.
type Blueprint struct {
	Preamble   Preamble    `json:"preamble"`
	Validators []Validator `json:"validators"`
}

type Preamble struct {
	Title         string `json:"title"`
	Version       string `json:"version"`
	PlutusVersion string `json:"plutusVersion"`
}

type Validator struct {
	Title        string `json:"title"`
	CompiledCode string `json:"compiledCode"`
	Hash         string `json:"hash"`
}

func LoadBlueprint(path string) (*Blueprint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint: %w", err)
	}
	var b Blueprint
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("parse blueprint: %w", err)
	}
	if len(b.Validators) == 0 {
		return nil, fmt.Errorf("blueprint %s lists no validators", path)
	}
	return &b, nil
}

// Validator looks a validator up by title.
func (b *Blueprint) Validator(title string) (Validator, error) {
	for _, v := range b.Validators {
		if v.Title == title {
			return v, nil
		}
	}
	return Validator{}, fmt.Errorf("blueprint has no validator %q", title)
}
