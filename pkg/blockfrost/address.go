package blockfrost

import (
	"context"
	"strconv"

	bfg "github.com/blockfrost/blockfrost-go"
)

// VerifyAddress reports whether the provider knows the address to be
// well-formed. Used to reject bad receivers before any transaction is built.
func (p *Provider) VerifyAddress(ctx context.Context, address string) bool {
	_, err := p.client.Address(ctx, address)
	return err == nil
}

func (p *Provider) GetAddress(ctx context.Context, address string) (bfg.Address, error) {
	addr, err := p.client.Address(ctx, address)
	if err != nil {
		return bfg.Address{}, err
	}

	return addr, nil
}

// GetAddressBalance returns the total lovelace held at an address.
func (p *Provider) GetAddressBalance(ctx context.Context, address string) (uint64, error) {
	addr, err := p.GetAddress(ctx, address)
	if err != nil {
		return 0, err
	}

	var lovelace uint64
	for _, a := range addr.Amount {
		if a.Unit == "lovelace" {
			v, _ := strconv.ParseInt(a.Quantity, 10, 64)
			lovelace += uint64(v)
		}
	}
	return lovelace, nil
}
