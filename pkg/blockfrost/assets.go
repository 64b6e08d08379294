package blockfrost

import (
	"context"

	bfg "github.com/blockfrost/blockfrost-go"
)

// AssetInfo returns the provider's view of a minted asset by unit
// (policy id + hex asset name).
func (p *Provider) AssetInfo(ctx context.Context, unit string) (bfg.Asset, error) {
	info, err := p.client.Asset(ctx, unit)
	if err != nil {
		return bfg.Asset{}, err
	}

	return info, nil
}
