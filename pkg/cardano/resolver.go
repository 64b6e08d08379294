package cardano

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cardano-forge/pkg/plutus"
)

// Validator titles expected in the compiled-contract blueprint.
const (
	MintValidator  = "mint.mint"
	StoreValidator = "store.spend"
)

// ScriptResolver turns a validator template plus its parameters into final
// script bytes. Resolution is a pure function of the blueprint and the
// parameters; identical inputs always yield identical scripts.
type ScriptResolver interface {
	Resolve(ctx context.Context, validator string, params []plutus.Data) (string, error)
}

// AikenResolver parameterizes blueprint validators by running the aiken
// toolchain, one `blueprint apply` per parameter. The applied blueprint is
// written to a scratch file; only the resulting compiled code is returned.
type AikenResolver struct {
	Bin           string
	BlueprintPath string
}

func NewAikenResolver(bin, blueprintPath string) *AikenResolver {
	return &AikenResolver{Bin: bin, BlueprintPath: blueprintPath}
}

func (r *AikenResolver) Resolve(ctx context.Context, validator string, params []plutus.Data) (string, error) {
	if _, err := plutus.LoadBlueprint(r.BlueprintPath); err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp("", "forge-blueprint-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	current := r.BlueprintPath
	for i, p := range params {
		arg, err := plutus.EncodeHex(p)
		if err != nil {
			return "", fmt.Errorf("encode parameter %d: %w", i, err)
		}
		next := filepath.Join(dir, fmt.Sprintf("applied-%d.json", i))
		args := CommandArgs{
			"blueprint", "apply",
			"--validator", validator,
			"--in", current,
			"--out", next,
			arg,
		}
		if _, err := Run(r.Bin, args); err != nil {
			return "", fmt.Errorf("apply parameter %d to %s: %w", i, validator, err)
		}
		current = next
	}

	applied, err := plutus.LoadBlueprint(current)
	if err != nil {
		return "", err
	}
	v, err := applied.Validator(validator)
	if err != nil {
		return "", err
	}
	return v.CompiledCode, nil
}
