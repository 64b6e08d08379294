package cardano

import (
	"context"
	"encoding/hex"
	"fmt"

	"cardano-forge/pkg/blockfrost"
	"cardano-forge/pkg/forge"
	"cardano-forge/pkg/plutus"

	"golang.org/x/sync/errgroup"
)

// Signer is the wallet boundary the builder and engine depend on.
// Satisfied by *wallet.Wallet.
type Signer interface {
	Address() string
	PubKeyHash() string
	SignTx(bodyFile, outFile string) error
}

// Builder turns requested asset operations into transaction Plans. It decides
// which mint actions, script spends and outputs a transaction needs based on
// the asset's current on-chain state, and validates ownership before any
// mutation of an existing asset.
type Builder struct {
	chain   *Chain
	signer  Signer
	network string
}

func NewBuilder(chain *Chain, signer Signer, network string) *Builder {
	return &Builder{chain: chain, signer: signer, network: network}
}

type MintItem struct {
	AssetName string
	Metadata  forge.Metadata
	Quantity  int64
	Receiver  string
}

type UpdateItem struct {
	AssetName string
	Metadata  forge.Metadata
	TxHash    string
}

type BurnItem struct {
	AssetName string
	Quantity  int64
	TxHash    string
}

// Mint builds a transaction minting the requested assets. Every asset in one
// call must be uniformly new or uniformly existing: new assets get a
// reference token with a metadata datum at the store address plus user tokens
// at the receiver; existing assets get additional user tokens only, after the
// caller's key hash is checked against the stored owner.
func (b *Builder) Mint(ctx context.Context, items []MintItem) (*Plan, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("nothing to mint")
	}
	for _, item := range items {
		if item.AssetName == "" || item.Receiver == "" {
			return nil, fmt.Errorf("asset name and receiver are required")
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("mint quantity for %s must be positive", item.AssetName)
		}
	}

	// Reference-token lookups are read-only and order-independent; run them
	// concurrently and decide new-vs-existing only after all resolve.
	existing := make([]*blockfrost.UTxO, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i := range items {
		i := i
		g.Go(func() error {
			utxo, err := b.chain.UTxOByUnit(gctx, b.chain.RefUnit(items[i].AssetName))
			if err != nil {
				return fmt.Errorf("lookup %s: %w", items[i].AssetName, err)
			}
			existing[i] = utxo
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var newNames, existingNames []string
	for i, item := range items {
		if existing[i] == nil {
			newNames = append(newNames, item.AssetName)
		} else {
			existingNames = append(existingNames, item.AssetName)
		}
	}
	if len(newNames) > 0 && len(existingNames) > 0 {
		return nil, fmt.Errorf("mint cannot mix new assets %v with existing assets %v in one transaction", newNames, existingNames)
	}

	plan := &Plan{Network: b.network}

	if len(existingNames) > 0 {
		if err := b.mintExisting(plan, items, existing); err != nil {
			return nil, err
		}
	} else {
		if err := b.mintNew(plan, items); err != nil {
			return nil, err
		}
	}

	b.finalize(plan)
	return plan, nil
}

func (b *Builder) mintExisting(plan *Plan, items []MintItem, existing []*blockfrost.UTxO) error {
	for i, item := range items {
		owner, err := b.chain.DatumOwner(existing[i])
		if err != nil {
			return fmt.Errorf("read owner of %s: %w", item.AssetName, err)
		}
		if owner != b.signer.PubKeyHash() {
			return fmt.Errorf("not authorized to mint %s: datum owner %s does not match wallet key hash %s",
				item.AssetName, owner, b.signer.PubKeyHash())
		}

		plan.Mints = append(plan.Mints, MintAction{
			PolicyID:      b.chain.PolicyID,
			AssetNameHex:  plutus.UserAssetName(item.AssetName),
			Quantity:      item.Quantity,
			ScriptCborHex: b.chain.MintScript,
			Redeemer:      MintRedeemer(),
		})
		plan.addOutput(Output{
			Address: item.Receiver,
			Assets:  map[string]int64{b.chain.UserUnit(item.AssetName): item.Quantity},
		})
	}
	return nil
}

func (b *Builder) mintNew(plan *Plan, items []MintItem) error {
	ownerPKH, err := hex.DecodeString(b.signer.PubKeyHash())
	if err != nil {
		return err
	}

	for _, item := range items {
		datum, err := plutus.MetadataDatum(item.Metadata, ownerPKH)
		if err != nil {
			return fmt.Errorf("datum for %s: %w", item.AssetName, err)
		}

		plan.Mints = append(plan.Mints,
			MintAction{
				PolicyID:      b.chain.PolicyID,
				AssetNameHex:  plutus.RefAssetName(item.AssetName),
				Quantity:      1,
				ScriptCborHex: b.chain.MintScript,
				Redeemer:      MintRedeemer(),
			},
			MintAction{
				PolicyID:      b.chain.PolicyID,
				AssetNameHex:  plutus.UserAssetName(item.AssetName),
				Quantity:      item.Quantity,
				ScriptCborHex: b.chain.MintScript,
				Redeemer:      MintRedeemer(),
			},
		)

		plan.addOutput(Output{
			Address: b.chain.StoreAddress,
			Assets:  map[string]int64{b.chain.RefUnit(item.AssetName): 1},
			Datum:   datum,
		})
		plan.addOutput(Output{
			Address: item.Receiver,
			Assets:  map[string]int64{b.chain.UserUnit(item.AssetName): item.Quantity},
		})
	}
	return nil
}

// Update builds a transaction that spends each asset's reference UTxO and
// re-creates it at the store address with a wholly replaced datum. Only the
// stored owner key survives; no field merge happens.
func (b *Builder) Update(ctx context.Context, items []UpdateItem) (*Plan, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("nothing to update")
	}

	plan := &Plan{Network: b.network}

	var located []string
	requested := make([]string, len(items))
	for i, item := range items {
		requested[i] = item.AssetName

		utxo, err := b.locateReference(ctx, item.AssetName, item.TxHash)
		if err != nil {
			return nil, err
		}
		if utxo == nil {
			continue
		}
		located = append(located, item.AssetName)

		owner, err := b.chain.DatumOwner(utxo)
		if err != nil {
			return nil, fmt.Errorf("read owner of %s: %w", item.AssetName, err)
		}
		ownerPKH, err := hex.DecodeString(owner)
		if err != nil {
			return nil, err
		}
		datum, err := plutus.MetadataDatum(item.Metadata, ownerPKH)
		if err != nil {
			return nil, fmt.Errorf("datum for %s: %w", item.AssetName, err)
		}

		plan.ScriptInputs = append(plan.ScriptInputs, ScriptInput{
			TxHash:        utxo.TxHash,
			Index:         utxo.OutputIndex,
			Assets:        UTxOAssets(*utxo),
			ScriptCborHex: b.chain.StoreScript,
			Redeemer:      SpendRedeemer(),
		})
		plan.addOutput(Output{
			Address: b.chain.StoreAddress,
			Assets:  map[string]int64{b.chain.RefUnit(item.AssetName): 1},
			Datum:   datum,
		})
	}

	if missing := forge.SliceDiff(located, requested); len(missing) > 0 {
		return nil, fmt.Errorf("reference token not found for %v", missing)
	}

	b.finalize(plan)
	return plan, nil
}

// Burn builds a transaction burning user tokens. When the burned quantity
// equals the wallet's whole holding, the reference token is burned and its
// store UTxO spent as well, returning the asset to the absent state; lesser
// quantities burn user tokens only and return the remainder to the wallet.
func (b *Builder) Burn(ctx context.Context, items []BurnItem) (*Plan, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("nothing to burn")
	}

	plan := &Plan{Network: b.network}

	for _, item := range items {
		qty := item.Quantity
		if qty < 0 {
			qty = -qty
		}
		if qty == 0 {
			return nil, fmt.Errorf("burn quantity for %s must be non-zero", item.AssetName)
		}

		userUnit := b.chain.UserUnit(item.AssetName)
		held, err := b.heldQuantity(ctx, userUnit)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", item.AssetName, err)
		}
		if held == 0 {
			return nil, fmt.Errorf("wallet holds no %s user tokens", item.AssetName)
		}
		if qty > held {
			return nil, fmt.Errorf("burn quantity %d for %s exceeds held balance %d", qty, item.AssetName, held)
		}

		if qty == held {
			// Full burn: both tokens are destroyed together and the store
			// UTxO is removed.
			refUTxO, err := b.locateReference(ctx, item.AssetName, item.TxHash)
			if err != nil {
				return nil, err
			}
			if refUTxO == nil {
				return nil, fmt.Errorf("reference token not found for %s", item.AssetName)
			}

			plan.Mints = append(plan.Mints,
				MintAction{
					PolicyID:      b.chain.PolicyID,
					AssetNameHex:  plutus.UserAssetName(item.AssetName),
					Quantity:      -held,
					ScriptCborHex: b.chain.MintScript,
					Redeemer:      BurnRedeemer(),
				},
				MintAction{
					PolicyID:      b.chain.PolicyID,
					AssetNameHex:  plutus.RefAssetName(item.AssetName),
					Quantity:      -1,
					ScriptCborHex: b.chain.MintScript,
					Redeemer:      BurnRedeemer(),
				},
			)
			plan.ScriptInputs = append(plan.ScriptInputs, ScriptInput{
				TxHash:        refUTxO.TxHash,
				Index:         refUTxO.OutputIndex,
				Assets:        UTxOAssets(*refUTxO),
				ScriptCborHex: b.chain.StoreScript,
				Redeemer:      BurnRedeemer(),
			})
		} else {
			plan.Mints = append(plan.Mints, MintAction{
				PolicyID:      b.chain.PolicyID,
				AssetNameHex:  plutus.UserAssetName(item.AssetName),
				Quantity:      -qty,
				ScriptCborHex: b.chain.MintScript,
				Redeemer:      BurnRedeemer(),
			})
			plan.addOutput(Output{
				Address: b.signer.Address(),
				Assets:  map[string]int64{userUnit: held - qty},
			})
		}
	}

	b.finalize(plan)
	return plan, nil
}

// locateReference finds an asset's current reference UTxO, by explicit
// transaction hash when given, otherwise by asset lookup at the store
// address. With a hash, absence is an error; without, it returns nil.
func (b *Builder) locateReference(ctx context.Context, assetName, txHash string) (*blockfrost.UTxO, error) {
	refUnit := b.chain.RefUnit(assetName)
	if txHash != "" {
		return b.chain.UTxOByTxHash(ctx, txHash, refUnit)
	}
	return b.chain.UTxOByUnit(ctx, refUnit)
}

func (b *Builder) heldQuantity(ctx context.Context, unit string) (int64, error) {
	utxos, err := b.chain.provider.AddressUTxOsAsset(ctx, b.signer.Address(), unit)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, u := range utxos {
		total += AssetQuantity(u, unit)
	}
	return total, nil
}

// finalize attaches the required-signer hash, change address and network tag.
// Collateral and wallet-funded inputs are chosen by the engine at build time.
func (b *Builder) finalize(plan *Plan) {
	plan.RequiredSigners = []string{b.signer.PubKeyHash()}
	plan.ChangeAddress = b.signer.Address()
}
