package cardano

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cardano-forge/pkg/blockfrost"
	"cardano-forge/pkg/logger"
	"cardano-forge/pkg/plutus"
)

// Engine executes a Plan: balance and build the unsigned transaction, sign
// it, submit it, and wait for on-chain confirmation.
type Engine interface {
	Execute(ctx context.Context, plan *Plan, signer Signer) (string, error)
}

// CLIEngine renders Plans to cardano-cli invocations. Script, datum and
// redeemer artifacts are written to a scratch directory per transaction;
// fee calculation and balancing stay inside the external tooling.
type CLIEngine struct {
	CLIBin   string
	Provider Provider

	// MinOutputLovelace is attached to every rendered output; the ledger
	// min-ada rule is not recomputed here.
	MinOutputLovelace uint64
	// FeeBuffer is the extra lovelace the input selection reserves on top
	// of the rendered outputs.
	FeeBuffer uint64
}

func NewCLIEngine(cliBin string, provider Provider) *CLIEngine {
	return &CLIEngine{
		CLIBin:            cliBin,
		Provider:          provider,
		MinOutputLovelace: 2_000_000,
		FeeBuffer:         3_000_000,
	}
}

func (e *CLIEngine) Execute(ctx context.Context, plan *Plan, signer Signer) (string, error) {
	dir, err := os.MkdirTemp("", "forge-tx-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	bodyFile := filepath.Join(dir, "tx.raw")
	if err := e.buildTx(ctx, dir, bodyFile, plan, signer); err != nil {
		return "", err
	}

	signedFile := filepath.Join(dir, "tx.signed")
	if err := signer.SignTx(bodyFile, signedFile); err != nil {
		return "", err
	}

	cborHex, err := readTxEnvelope(signedFile)
	if err != nil {
		return "", err
	}

	txHash, err := e.Provider.SubmitTx(ctx, cborHex)
	if err != nil {
		return "", err
	}
	if err := e.Provider.WaitForTx(ctx, txHash); err != nil {
		return "", err
	}

	logger.Record.Info("ENGINE", "TX", txHash, "MINTS", len(plan.Mints), "OUTPUTS", len(plan.Outputs))
	return txHash, nil
}

func (e *CLIEngine) buildTx(ctx context.Context, dir, outFile string, plan *Plan, signer Signer) error {
	walletUTxOs, err := e.Provider.AddressUTxOs(ctx, signer.Address())
	if err != nil {
		return fmt.Errorf("wallet UTxOs: %w", err)
	}
	if len(walletUTxOs) == 0 {
		return fmt.Errorf("no UTxOs found at wallet address %s", signer.Address())
	}

	inputs, err := selectInputs(walletUTxOs, requiredWalletUnits(plan), e.lovelaceTarget(plan))
	if err != nil {
		return err
	}
	collateral, err := selectCollateral(walletUTxOs)
	if err != nil {
		return err
	}

	args := CommandArgs{"conway", "transaction", "build"}

	for _, in := range inputs {
		args = append(args, "--tx-in", fmt.Sprintf("%s#%d", in.TxHash, in.OutputIndex))
	}

	for i, in := range plan.ScriptInputs {
		scriptFile, err := writeScriptFile(dir, fmt.Sprintf("spend-%d", i), in.ScriptCborHex)
		if err != nil {
			return err
		}
		redeemerFile, err := writeDataFile(dir, fmt.Sprintf("spend-redeemer-%d", i), in.Redeemer)
		if err != nil {
			return err
		}
		args = append(args,
			"--tx-in", in.Ref(),
			"--tx-in-script-file", scriptFile,
			"--tx-in-inline-datum-present",
			"--tx-in-redeemer-file", redeemerFile,
		)
	}

	args = append(args, "--tx-in-collateral", fmt.Sprintf("%s#%d", collateral.TxHash, collateral.OutputIndex))

	mintArgs, err := renderMints(dir, plan.Mints)
	if err != nil {
		return err
	}
	args = append(args, mintArgs...)

	for i, out := range plan.Outputs {
		args = append(args, "--tx-out", renderOutput(out, e.MinOutputLovelace))
		if out.Datum != nil {
			datumFile, err := writeDataFile(dir, fmt.Sprintf("datum-%d", i), out.Datum)
			if err != nil {
				return err
			}
			args = append(args, "--tx-out-inline-datum-file", datumFile)
		}
	}

	for _, pkh := range plan.RequiredSigners {
		args = append(args, "--required-signer-hash", pkh)
	}

	args = append(args, "--change-address", plan.ChangeAddress)
	args = append(args, NetworkArgs(plan.Network)...)
	args = append(args, "--out-file", outFile)

	if _, err := Run(e.CLIBin, args); err != nil {
		return fmt.Errorf("build transaction: %w", err)
	}
	return nil
}

func (e *CLIEngine) lovelaceTarget(plan *Plan) uint64 {
	return e.MinOutputLovelace*uint64(len(plan.Outputs)) + e.FeeBuffer
}

// requiredWalletUnits maps every token unit to the quantity the wallet
// inputs must supply for the transaction to balance: output demand plus
// burned quantities, less what positive mints and spent script UTxOs
// already bring in.
func requiredWalletUnits(plan *Plan) map[string]int64 {
	required := make(map[string]int64)
	for _, m := range plan.Mints {
		required[m.Unit()] -= m.Quantity
	}
	for _, out := range plan.Outputs {
		for unit, qty := range out.Assets {
			required[unit] += qty
		}
	}
	for _, in := range plan.ScriptInputs {
		for unit, qty := range in.Assets {
			required[unit] -= qty
		}
	}
	for unit, qty := range required {
		if qty <= 0 {
			delete(required, unit)
		}
	}
	return required
}

// selectInputs picks wallet UTxOs covering the required burn units first,
// then keeps accumulating until the lovelace target is met.
func selectInputs(utxos []blockfrost.UTxO, required map[string]int64, minLovelace uint64) ([]blockfrost.UTxO, error) {
	sorted := make([]blockfrost.UTxO, len(utxos))
	copy(sorted, utxos)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TxHash != sorted[j].TxHash {
			return sorted[i].TxHash < sorted[j].TxHash
		}
		return sorted[i].OutputIndex < sorted[j].OutputIndex
	})

	accumulated := make(map[string]int64)
	var lovelace uint64
	var selected []blockfrost.UTxO

	covered := func() bool {
		for unit, qty := range required {
			if accumulated[unit] < qty {
				return false
			}
		}
		return lovelace >= minLovelace
	}

	// Token-bearing UTxOs first so burns are satisfiable, then plain ADA.
	for _, pass := range []bool{true, false} {
		for _, u := range sorted {
			carriesRequired := false
			for unit := range required {
				if AssetQuantity(u, unit) > 0 {
					carriesRequired = true
					break
				}
			}
			if carriesRequired != pass {
				continue
			}
			selected = append(selected, u)
			lovelace += Lovelace(u)
			for unit := range required {
				accumulated[unit] += AssetQuantity(u, unit)
			}
			if covered() {
				return selected, nil
			}
		}
		if pass && len(required) > 0 && !tokensCovered(accumulated, required) {
			return nil, fmt.Errorf("could not find enough tokens to satisfy requirements")
		}
	}

	return nil, fmt.Errorf("not enough ADA available: have %d, want at least %d", lovelace, minLovelace)
}

func tokensCovered(acc, required map[string]int64) bool {
	for unit, qty := range required {
		if acc[unit] < qty {
			return false
		}
	}
	return true
}

// selectCollateral returns the first pure-ADA UTxO; script transactions
// cannot use token-bearing collateral.
func selectCollateral(utxos []blockfrost.UTxO) (blockfrost.UTxO, error) {
	for _, u := range utxos {
		if len(u.Amount) == 1 && u.Amount[0].Unit == "lovelace" {
			return u, nil
		}
	}
	return blockfrost.UTxO{}, fmt.Errorf("wallet has no pure-ADA UTxO usable as collateral")
}

// renderMints groups mint actions into one --mint value plus a script and
// redeemer file per policy. All actions under one policy must share a
// redeemer; mixing mint and burn variants in one policy is a builder bug.
func renderMints(dir string, mints []MintAction) (CommandArgs, error) {
	if len(mints) == 0 {
		return nil, nil
	}

	parts := make([]string, 0, len(mints))
	byPolicy := make(map[string]MintAction)
	var policies []string
	for _, m := range mints {
		parts = append(parts, fmt.Sprintf("%d %s.%s", m.Quantity, m.PolicyID, m.AssetNameHex))
		if prev, ok := byPolicy[m.PolicyID]; ok {
			prevHex, err := plutus.EncodeHex(prev.Redeemer)
			if err != nil {
				return nil, err
			}
			curHex, err := plutus.EncodeHex(m.Redeemer)
			if err != nil {
				return nil, err
			}
			if prevHex != curHex {
				return nil, fmt.Errorf("policy %s has conflicting redeemers in one transaction", m.PolicyID)
			}
			continue
		}
		byPolicy[m.PolicyID] = m
		policies = append(policies, m.PolicyID)
	}
	sort.Strings(policies)

	args := CommandArgs{"--mint", strings.Join(parts, " + ")}
	for _, policy := range policies {
		m := byPolicy[policy]
		scriptFile, err := writeScriptFile(dir, "mint-"+policy[:8], m.ScriptCborHex)
		if err != nil {
			return nil, err
		}
		redeemerFile, err := writeDataFile(dir, "mint-redeemer-"+policy[:8], m.Redeemer)
		if err != nil {
			return nil, err
		}
		args = append(args, "--mint-script-file", scriptFile, "--mint-redeemer-file", redeemerFile)
	}
	return args, nil
}

func renderOutput(out Output, lovelace uint64) string {
	units := make([]string, 0, len(out.Assets))
	for unit := range out.Assets {
		units = append(units, unit)
	}
	sort.Strings(units)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s+%d", out.Address, lovelace)
	for _, unit := range units {
		// unit = policy id (56 hex chars) + asset name hex
		fmt.Fprintf(&sb, "+%d %s.%s", out.Assets[unit], unit[:56], unit[56:])
	}
	return sb.String()
}

func writeScriptFile(dir, name, cborHex string) (string, error) {
	envelope := map[string]string{
		"type":        "PlutusScriptV2",
		"description": "",
		"cborHex":     cborHex,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+".plutus")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func writeDataFile(dir, name string, d plutus.Data) (string, error) {
	raw, err := plutus.ToJSON(d)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func readTxEnvelope(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var envelope struct {
		CborHex string `json:"cborHex"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("parse transaction envelope: %w", err)
	}
	return envelope.CborHex, nil
}
