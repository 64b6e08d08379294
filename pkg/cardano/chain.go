package cardano

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"cardano-forge/pkg/blockfrost"
	"cardano-forge/pkg/forge"
	"cardano-forge/pkg/plutus"
)

// Provider is the chain data access this package needs from the indexing
// service. Satisfied by *blockfrost.Provider.
type Provider interface {
	AddressUTxOs(ctx context.Context, address string) ([]blockfrost.UTxO, error)
	AddressUTxOsAsset(ctx context.Context, address, unit string) ([]blockfrost.UTxO, error)
	TxUTxOs(ctx context.Context, txHash string) (*blockfrost.TxUTxOs, error)
	SubmitTx(ctx context.Context, txCborHex string) (string, error)
	WaitForTx(ctx context.Context, txHash string) error
}

// Chain is the access adapter for one course context. Given a course and an
// issuer address it derives the store and mint scripts, the policy id and the
// store address, and caches them for the life of the instance. All other
// state lives on chain.
type Chain struct {
	provider Provider

	Course        forge.CourseID
	IssuerAddress string
	IssuerPKH     string
	MintScript    string
	StoreScript   string
	PolicyID      string
	StoreAddress  string
}

func NewChain(ctx context.Context, provider Provider, resolver ScriptResolver, mainnet bool, course forge.CourseID, issuerAddress string) (*Chain, error) {
	issuerPKH, err := PaymentKeyHash(issuerAddress)
	if err != nil {
		return nil, fmt.Errorf("issuer address: %w", err)
	}
	pkhBytes, err := hex.DecodeString(issuerPKH)
	if err != nil {
		return nil, err
	}

	params := []plutus.Data{
		plutus.Bytes(course),
		plutus.Bytes(pkhBytes),
	}

	storeScript, err := resolver.Resolve(ctx, StoreValidator, params)
	if err != nil {
		return nil, fmt.Errorf("resolve store script: %w", err)
	}
	mintScript, err := resolver.Resolve(ctx, MintValidator, params)
	if err != nil {
		return nil, fmt.Errorf("resolve mint script: %w", err)
	}

	policyID, err := ScriptHash(mintScript)
	if err != nil {
		return nil, fmt.Errorf("policy id: %w", err)
	}
	storeHash, err := ScriptHash(storeScript)
	if err != nil {
		return nil, fmt.Errorf("store script hash: %w", err)
	}
	storeAddress, err := ScriptAddress(storeHash, mainnet)
	if err != nil {
		return nil, fmt.Errorf("store address: %w", err)
	}

	return &Chain{
		provider:      provider,
		Course:        course,
		IssuerAddress: issuerAddress,
		IssuerPKH:     issuerPKH,
		MintScript:    mintScript,
		StoreScript:   storeScript,
		PolicyID:      policyID,
		StoreAddress:  storeAddress,
	}, nil
}

// RefUnit is the full unit of an asset's reference token under this policy.
func (c *Chain) RefUnit(assetName string) string {
	return c.PolicyID + plutus.RefAssetName(assetName)
}

// UserUnit is the full unit of an asset's user token under this policy.
func (c *Chain) UserUnit(assetName string) string {
	return c.PolicyID + plutus.UserAssetName(assetName)
}

// UTxOByUnit returns the most recent UTxO holding the unit at the store
// address, or nil when the asset does not exist there.
func (c *Chain) UTxOByUnit(ctx context.Context, unit string) (*blockfrost.UTxO, error) {
	utxos, err := c.provider.AddressUTxOsAsset(ctx, c.StoreAddress, unit)
	if err != nil {
		return nil, err
	}
	if len(utxos) == 0 {
		return nil, nil
	}
	// Provider ordering is descending, so the first entry is the latest.
	return &utxos[0], nil
}

// UTxOsByUnit returns every UTxO holding the unit at the store address.
func (c *Chain) UTxOsByUnit(ctx context.Context, unit string) ([]blockfrost.UTxO, error) {
	return c.provider.AddressUTxOsAsset(ctx, c.StoreAddress, unit)
}

// UTxOByTxHash locates the output of the given transaction that sits at the
// store address and holds the unit. Unlike UTxOByUnit, absence is an error.
func (c *Chain) UTxOByTxHash(ctx context.Context, txHash, unit string) (*blockfrost.UTxO, error) {
	tx, err := c.provider.TxUTxOs(ctx, txHash)
	if err != nil {
		return nil, err
	}
	for _, out := range tx.Outputs {
		if out.Address != c.StoreAddress {
			continue
		}
		if AssetQuantity(out, unit) > 0 {
			found := out
			found.TxHash = txHash
			return &found, nil
		}
	}
	return nil, fmt.Errorf("transaction %s has no %s output at the store address", txHash, unit)
}

// DatumMetadata decodes a store UTxO's inline datum into its key/value map.
func (c *Chain) DatumMetadata(utxo *blockfrost.UTxO, includeOwner bool) (map[string]string, error) {
	if utxo == nil || utxo.InlineDatum == "" {
		return nil, fmt.Errorf("UTxO carries no inline datum")
	}
	return plutus.DecodeMetadata(utxo.InlineDatum, includeOwner)
}

// DatumOwner extracts only the owner public-key hash from a store UTxO.
func (c *Chain) DatumOwner(utxo *blockfrost.UTxO) (string, error) {
	if utxo == nil || utxo.InlineDatum == "" {
		return "", fmt.Errorf("UTxO carries no inline datum")
	}
	return plutus.DatumOwner(utxo.InlineDatum)
}

// AssetQuantity returns how much of a unit a UTxO carries.
func AssetQuantity(utxo blockfrost.UTxO, unit string) int64 {
	var total int64
	for _, a := range utxo.Amount {
		if a.Unit == unit {
			v, _ := strconv.ParseInt(a.Quantity, 10, 64)
			total += v
		}
	}
	return total
}

// UTxOAssets returns every non-ADA unit a UTxO carries with its quantity.
func UTxOAssets(utxo blockfrost.UTxO) map[string]int64 {
	assets := make(map[string]int64)
	for _, a := range utxo.Amount {
		if a.Unit == "lovelace" {
			continue
		}
		v, _ := strconv.ParseInt(a.Quantity, 10, 64)
		assets[a.Unit] += v
	}
	return assets
}

// Lovelace returns the plain ADA carried by a UTxO.
func Lovelace(utxo blockfrost.UTxO) uint64 {
	var total uint64
	for _, a := range utxo.Amount {
		if a.Unit == "lovelace" {
			v, _ := strconv.ParseUint(a.Quantity, 10, 64)
			total += v
		}
	}
	return total
}
