package cardano

import (
	"context"
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"cardano-forge/pkg/blockfrost"
	"cardano-forge/pkg/forge"
	"cardano-forge/pkg/plutus"

	"github.com/fxamacker/cbor/v2"
)

const testOwnerPKH = "abababababababababababababababababababababababababababab"

type stubResolver struct {
	scripts map[string]string
}

func (r stubResolver) Resolve(_ context.Context, validator string, _ []plutus.Data) (string, error) {
	script, ok := r.scripts[validator]
	if !ok {
		return "", fmt.Errorf("no script for %s", validator)
	}
	return script, nil
}

type fakeProvider struct {
	utxos   map[string][]blockfrost.UTxO // address + "|" + unit
	all     map[string][]blockfrost.UTxO // address
	txs     map[string]*blockfrost.TxUTxOs
	lookups int
}

func (p *fakeProvider) AddressUTxOs(_ context.Context, address string) ([]blockfrost.UTxO, error) {
	p.lookups++
	return p.all[address], nil
}

func (p *fakeProvider) AddressUTxOsAsset(_ context.Context, address, unit string) ([]blockfrost.UTxO, error) {
	p.lookups++
	return p.utxos[address+"|"+unit], nil
}

func (p *fakeProvider) TxUTxOs(_ context.Context, txHash string) (*blockfrost.TxUTxOs, error) {
	p.lookups++
	tx, ok := p.txs[txHash]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", txHash)
	}
	return tx, nil
}

func (p *fakeProvider) SubmitTx(context.Context, string) (string, error) { return "", nil }
func (p *fakeProvider) WaitForTx(context.Context, string) error          { return nil }

type fakeSigner struct {
	addr string
	pkh  string
}

func (s fakeSigner) Address() string            { return s.addr }
func (s fakeSigner) PubKeyHash() string         { return s.pkh }
func (s fakeSigner) SignTx(_, _ string) error   { return nil }

func wrapTestScript(t *testing.T, raw []byte) string {
	t.Helper()
	wrapped, err := cbor.Marshal(raw)
	if err != nil {
		t.Fatalf("wrap script: %v", err)
	}
	return hex.EncodeToString(wrapped)
}

func testAddress(t *testing.T, seed byte) string {
	t.Helper()
	hash, err := ScriptHash(wrapTestScript(t, []byte{seed, seed + 1}))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	addr, err := ScriptAddress(hash, false)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	return addr
}

func newTestBuilder(t *testing.T, provider *fakeProvider) (*Chain, *Builder, fakeSigner) {
	t.Helper()

	resolver := stubResolver{scripts: map[string]string{
		MintValidator:  wrapTestScript(t, []byte{0x10, 0x11, 0x12}),
		StoreValidator: wrapTestScript(t, []byte{0x20, 0x21, 0x22}),
	}}
	signer := fakeSigner{addr: testAddress(t, 0x40), pkh: testOwnerPKH}

	chain, err := NewChain(context.Background(), provider, resolver, false, forge.CourseID("course-1"), signer.addr)
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}
	return chain, NewBuilder(chain, signer, "preprod"), signer
}

func testDatumHex(t *testing.T, meta map[string]string, ownerHex string) string {
	t.Helper()
	owner, err := hex.DecodeString(ownerHex)
	if err != nil {
		t.Fatalf("owner hex: %v", err)
	}
	datum, err := plutus.MetadataDatum(meta, owner)
	if err != nil {
		t.Fatalf("datum: %v", err)
	}
	datumHex, err := plutus.EncodeHex(datum)
	if err != nil {
		t.Fatalf("encode datum: %v", err)
	}
	return datumHex
}

func storeUTxO(t *testing.T, chain *Chain, assetName, txHash string, meta map[string]string, ownerHex string) blockfrost.UTxO {
	t.Helper()
	return blockfrost.UTxO{
		Address:     chain.StoreAddress,
		TxHash:      txHash,
		OutputIndex: 0,
		Amount: []blockfrost.Amount{
			{Unit: "lovelace", Quantity: "2000000"},
			{Unit: chain.RefUnit(assetName), Quantity: "1"},
		},
		InlineDatum: testDatumHex(t, meta, ownerHex),
	}
}

func redeemerHex(t *testing.T, d plutus.Data) string {
	t.Helper()
	h, err := plutus.EncodeHex(d)
	if err != nil {
		t.Fatalf("encode redeemer: %v", err)
	}
	return h
}

func TestMint_NewAssets(t *testing.T) {
	provider := &fakeProvider{utxos: map[string][]blockfrost.UTxO{}}
	chain, builder, signer := newTestBuilder(t, provider)

	receiver := testAddress(t, 0x50)
	plan, err := builder.Mint(context.Background(), []MintItem{
		{AssetName: "cert-a", Metadata: map[string]string{"name": "A"}, Quantity: 3, Receiver: receiver},
		{AssetName: "cert-b", Metadata: map[string]string{"name": "B"}, Quantity: 1, Receiver: receiver},
	})
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if len(plan.Mints) != 4 {
		t.Fatalf("mint count: got %d, want 4", len(plan.Mints))
	}
	for _, m := range plan.Mints {
		if got, want := redeemerHex(t, m.Redeemer), "d87980"; got != want {
			t.Errorf("mint redeemer: got %s, want %s", got, want)
		}
	}
	if plan.Mints[0].Quantity != 1 || plan.Mints[0].AssetNameHex != plutus.RefAssetName("cert-a") {
		t.Errorf("first mint is not the cert-a reference token: %+v", plan.Mints[0])
	}
	if plan.Mints[1].Quantity != 3 || plan.Mints[1].AssetNameHex != plutus.UserAssetName("cert-a") {
		t.Errorf("second mint is not 3 cert-a user tokens: %+v", plan.Mints[1])
	}

	// Two store outputs with datums plus one coalesced receiver output.
	if len(plan.Outputs) != 3 {
		t.Fatalf("output count: got %d, want 3", len(plan.Outputs))
	}
	var receiverOutputs, storeOutputs int
	for _, out := range plan.Outputs {
		switch out.Address {
		case receiver:
			receiverOutputs++
			if out.Datum != nil {
				t.Error("receiver output must not carry a datum")
			}
			if out.Assets[chain.UserUnit("cert-a")] != 3 || out.Assets[chain.UserUnit("cert-b")] != 1 {
				t.Errorf("receiver output assets wrong: %v", out.Assets)
			}
		case chain.StoreAddress:
			storeOutputs++
			if out.Datum == nil {
				t.Error("store output must carry a datum")
			}
		default:
			t.Errorf("unexpected output address %s", out.Address)
		}
	}
	if receiverOutputs != 1 || storeOutputs != 2 {
		t.Errorf("got %d receiver and %d store outputs, want 1 and 2", receiverOutputs, storeOutputs)
	}

	if !reflect.DeepEqual(plan.RequiredSigners, []string{signer.pkh}) {
		t.Errorf("required signers: got %v", plan.RequiredSigners)
	}
	if plan.ChangeAddress != signer.addr {
		t.Errorf("change address: got %s, want %s", plan.ChangeAddress, signer.addr)
	}
}

func TestMint_ExistingAsset(t *testing.T) {
	provider := &fakeProvider{utxos: map[string][]blockfrost.UTxO{}}
	chain, builder, _ := newTestBuilder(t, provider)

	utxo := storeUTxO(t, chain, "cert-a", "aa11", map[string]string{"name": "A"}, testOwnerPKH)
	provider.utxos[chain.StoreAddress+"|"+chain.RefUnit("cert-a")] = []blockfrost.UTxO{utxo}

	receiver := testAddress(t, 0x50)
	plan, err := builder.Mint(context.Background(), []MintItem{
		{AssetName: "cert-a", Metadata: map[string]string{"name": "A"}, Quantity: 5, Receiver: receiver},
	})
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if len(plan.Mints) != 1 {
		t.Fatalf("mint count: got %d, want 1", len(plan.Mints))
	}
	if plan.Mints[0].AssetNameHex != plutus.UserAssetName("cert-a") || plan.Mints[0].Quantity != 5 {
		t.Errorf("unexpected mint action: %+v", plan.Mints[0])
	}
	if len(plan.ScriptInputs) != 0 {
		t.Errorf("existing-asset mint must not spend the store UTxO")
	}
	if len(plan.Outputs) != 1 || plan.Outputs[0].Address != receiver {
		t.Errorf("expected a single receiver output, got %+v", plan.Outputs)
	}
}

func TestMint_OwnershipMismatch(t *testing.T) {
	provider := &fakeProvider{utxos: map[string][]blockfrost.UTxO{}}
	chain, builder, _ := newTestBuilder(t, provider)

	otherOwner := strings.Repeat("cd", 28)
	utxo := storeUTxO(t, chain, "cert-a", "aa11", map[string]string{"name": "A"}, otherOwner)
	provider.utxos[chain.StoreAddress+"|"+chain.RefUnit("cert-a")] = []blockfrost.UTxO{utxo}

	_, err := builder.Mint(context.Background(), []MintItem{
		{AssetName: "cert-a", Metadata: map[string]string{}, Quantity: 1, Receiver: testAddress(t, 0x50)},
	})
	if err == nil {
		t.Fatal("expected ownership error")
	}
	if !strings.Contains(err.Error(), "not authorized") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMint_MixedStates(t *testing.T) {
	provider := &fakeProvider{utxos: map[string][]blockfrost.UTxO{}}
	chain, builder, _ := newTestBuilder(t, provider)

	utxo := storeUTxO(t, chain, "cert-a", "aa11", map[string]string{"name": "A"}, testOwnerPKH)
	provider.utxos[chain.StoreAddress+"|"+chain.RefUnit("cert-a")] = []blockfrost.UTxO{utxo}

	receiver := testAddress(t, 0x50)
	_, err := builder.Mint(context.Background(), []MintItem{
		{AssetName: "cert-a", Metadata: map[string]string{}, Quantity: 1, Receiver: receiver},
		{AssetName: "cert-b", Metadata: map[string]string{}, Quantity: 1, Receiver: receiver},
	})
	if err == nil {
		t.Fatal("expected mixed-state error")
	}
	for _, want := range []string{"cannot mix", "cert-a", "cert-b"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestMint_Validation(t *testing.T) {
	provider := &fakeProvider{utxos: map[string][]blockfrost.UTxO{}}
	_, builder, _ := newTestBuilder(t, provider)

	tests := []struct {
		name  string
		items []MintItem
	}{
		{name: "empty", items: nil},
		{name: "missing receiver", items: []MintItem{{AssetName: "a", Quantity: 1}}},
		{name: "missing asset name", items: []MintItem{{Receiver: "addr", Quantity: 1}}},
		{name: "zero quantity", items: []MintItem{{AssetName: "a", Receiver: "addr"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := provider.lookups
			if _, err := builder.Mint(context.Background(), tc.items); err == nil {
				t.Error("expected validation error")
			}
			if provider.lookups != before {
				t.Error("validation failure must not hit the provider")
			}
		})
	}
}

func TestUpdate_ReplacesDatum(t *testing.T) {
	provider := &fakeProvider{utxos: map[string][]blockfrost.UTxO{}}
	chain, builder, _ := newTestBuilder(t, provider)

	old := map[string]string{"name": "Old", "grade": "B"}
	utxo := storeUTxO(t, chain, "cert-a", "aa11", old, testOwnerPKH)
	provider.utxos[chain.StoreAddress+"|"+chain.RefUnit("cert-a")] = []blockfrost.UTxO{utxo}

	newMeta := map[string]string{"name": "New"}
	plan, err := builder.Update(context.Background(), []UpdateItem{
		{AssetName: "cert-a", Metadata: newMeta},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if len(plan.ScriptInputs) != 1 {
		t.Fatalf("script input count: got %d, want 1", len(plan.ScriptInputs))
	}
	in := plan.ScriptInputs[0]
	if in.TxHash != "aa11" || in.Index != 0 {
		t.Errorf("wrong UTxO spent: %+v", in)
	}
	if in.Assets[chain.RefUnit("cert-a")] != 1 {
		t.Errorf("script input does not carry the reference token: %v", in.Assets)
	}
	if got, want := redeemerHex(t, in.Redeemer), "d87980"; got != want {
		t.Errorf("spend redeemer: got %s, want %s", got, want)
	}

	if len(plan.Outputs) != 1 || plan.Outputs[0].Address != chain.StoreAddress {
		t.Fatalf("expected one store output, got %+v", plan.Outputs)
	}
	if plan.Outputs[0].Assets[chain.RefUnit("cert-a")] != 1 {
		t.Errorf("store output must carry exactly the reference token: %v", plan.Outputs[0].Assets)
	}

	// Full replacement: no residual old keys, original owner preserved.
	datumHex, err := plutus.EncodeHex(plan.Outputs[0].Datum)
	if err != nil {
		t.Fatalf("encode new datum: %v", err)
	}
	decoded, err := plutus.DecodeMetadata(datumHex, true)
	if err != nil {
		t.Fatalf("decode new datum: %v", err)
	}
	want := map[string]string{"name": "New", "_pk": testOwnerPKH}
	if !reflect.DeepEqual(decoded, want) {
		t.Errorf("datum mismatch: got %v, want %v", decoded, want)
	}

	if len(plan.Mints) != 0 {
		t.Errorf("update must not mint: %+v", plan.Mints)
	}
}

func TestUpdate_ByTxHash(t *testing.T) {
	provider := &fakeProvider{utxos: map[string][]blockfrost.UTxO{}, txs: map[string]*blockfrost.TxUTxOs{}}
	chain, builder, _ := newTestBuilder(t, provider)

	utxo := storeUTxO(t, chain, "cert-a", "", map[string]string{"name": "A"}, testOwnerPKH)
	utxo.OutputIndex = 2
	provider.txs["bb22"] = &blockfrost.TxUTxOs{Hash: "bb22", Outputs: []blockfrost.UTxO{utxo}}

	plan, err := builder.Update(context.Background(), []UpdateItem{
		{AssetName: "cert-a", Metadata: map[string]string{"name": "B"}, TxHash: "bb22"},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if plan.ScriptInputs[0].TxHash != "bb22" || plan.ScriptInputs[0].Index != 2 {
		t.Errorf("wrong UTxO spent: %+v", plan.ScriptInputs[0])
	}
}

func TestUpdate_NotFound(t *testing.T) {
	provider := &fakeProvider{utxos: map[string][]blockfrost.UTxO{}}
	_, builder, _ := newTestBuilder(t, provider)

	_, err := builder.Update(context.Background(), []UpdateItem{
		{AssetName: "ghost", Metadata: map[string]string{"name": "x"}},
	})
	if err == nil {
		t.Fatal("expected error for missing reference token")
	}
	if !strings.Contains(err.Error(), "reference token not found") || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("unexpected error: %v", err)
	}
}

func burnFixture(t *testing.T, provider *fakeProvider, chain *Chain, signer fakeSigner, held int64) {
	t.Helper()
	userUnit := chain.UserUnit("cert-a")
	provider.utxos[signer.addr+"|"+userUnit] = []blockfrost.UTxO{
		{
			TxHash: "cc01", OutputIndex: 0,
			Amount: []blockfrost.Amount{
				{Unit: "lovelace", Quantity: "1500000"},
				{Unit: userUnit, Quantity: fmt.Sprintf("%d", held-1)},
			},
		},
		{
			TxHash: "cc02", OutputIndex: 1,
			Amount: []blockfrost.Amount{
				{Unit: "lovelace", Quantity: "1500000"},
				{Unit: userUnit, Quantity: "1"},
			},
		},
	}
	refUTxO := storeUTxO(t, chain, "cert-a", "dd33", map[string]string{"name": "A"}, testOwnerPKH)
	provider.utxos[chain.StoreAddress+"|"+chain.RefUnit("cert-a")] = []blockfrost.UTxO{refUTxO}
}

func TestBurn_Full(t *testing.T) {
	for _, quantity := range []int64{5, -5} {
		t.Run(fmt.Sprintf("quantity %d", quantity), func(t *testing.T) {
			provider := &fakeProvider{utxos: map[string][]blockfrost.UTxO{}}
			chain, builder, signer := newTestBuilder(t, provider)
			burnFixture(t, provider, chain, signer, 5)

			plan, err := builder.Burn(context.Background(), []BurnItem{
				{AssetName: "cert-a", Quantity: quantity},
			})
			if err != nil {
				t.Fatalf("Burn failed: %v", err)
			}

			if len(plan.Mints) != 2 {
				t.Fatalf("mint count: got %d, want 2", len(plan.Mints))
			}
			if plan.Mints[0].AssetNameHex != plutus.UserAssetName("cert-a") || plan.Mints[0].Quantity != -5 {
				t.Errorf("user burn wrong: %+v", plan.Mints[0])
			}
			if plan.Mints[1].AssetNameHex != plutus.RefAssetName("cert-a") || plan.Mints[1].Quantity != -1 {
				t.Errorf("reference burn wrong: %+v", plan.Mints[1])
			}
			for _, m := range plan.Mints {
				if got, want := redeemerHex(t, m.Redeemer), "d87a80"; got != want {
					t.Errorf("burn redeemer: got %s, want %s", got, want)
				}
			}

			if len(plan.ScriptInputs) != 1 || plan.ScriptInputs[0].TxHash != "dd33" {
				t.Errorf("full burn must spend the store UTxO: %+v", plan.ScriptInputs)
			}
			if plan.ScriptInputs[0].Assets[chain.RefUnit("cert-a")] != 1 {
				t.Errorf("script input does not carry the reference token: %v", plan.ScriptInputs[0].Assets)
			}
			if len(plan.Outputs) != 0 {
				t.Errorf("full burn must not emit outputs: %+v", plan.Outputs)
			}
		})
	}
}

func TestBurn_Partial(t *testing.T) {
	provider := &fakeProvider{utxos: map[string][]blockfrost.UTxO{}}
	chain, builder, signer := newTestBuilder(t, provider)
	burnFixture(t, provider, chain, signer, 5)

	plan, err := builder.Burn(context.Background(), []BurnItem{
		{AssetName: "cert-a", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("Burn failed: %v", err)
	}

	if len(plan.Mints) != 1 || plan.Mints[0].Quantity != -2 {
		t.Fatalf("partial burn mints wrong: %+v", plan.Mints)
	}
	if len(plan.ScriptInputs) != 0 {
		t.Errorf("partial burn must leave the store UTxO alone: %+v", plan.ScriptInputs)
	}
	if len(plan.Outputs) != 1 || plan.Outputs[0].Address != signer.addr {
		t.Fatalf("expected one wallet output, got %+v", plan.Outputs)
	}
	if plan.Outputs[0].Assets[chain.UserUnit("cert-a")] != 3 {
		t.Errorf("remaining balance wrong: %v", plan.Outputs[0].Assets)
	}
}

func TestBurn_ExceedsHeld(t *testing.T) {
	provider := &fakeProvider{utxos: map[string][]blockfrost.UTxO{}}
	chain, builder, signer := newTestBuilder(t, provider)
	burnFixture(t, provider, chain, signer, 5)

	_, err := builder.Burn(context.Background(), []BurnItem{
		{AssetName: "cert-a", Quantity: 9},
	})
	if err == nil {
		t.Fatal("expected error for burn beyond held balance")
	}
	if !strings.Contains(err.Error(), "exceeds held balance") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBurn_NoTokens(t *testing.T) {
	provider := &fakeProvider{utxos: map[string][]blockfrost.UTxO{}}
	_, builder, _ := newTestBuilder(t, provider)

	_, err := builder.Burn(context.Background(), []BurnItem{
		{AssetName: "cert-a", Quantity: 1},
	})
	if err == nil {
		t.Fatal("expected error when wallet holds none of the asset")
	}
}
