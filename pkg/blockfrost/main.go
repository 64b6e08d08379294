// Package blockfrost wraps the hosted chain-indexing and submission provider.
// The official SDK covers the simple lookups; UTxO queries, submission and
// confirmation polling go through the REST surface directly with the
// project-id header and cursor-free page pagination.
package blockfrost

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cardano-forge/pkg/logger"

	bfg "github.com/blockfrost/blockfrost-go"
)

const pageSize = 100

var networkURLs = map[string]string{
	"mainnet": "https://cardano-mainnet.blockfrost.io/api/v0",
	"preprod": "https://cardano-preprod.blockfrost.io/api/v0",
	"preview": "https://cardano-preview.blockfrost.io/api/v0",
}

type Provider struct {
	client    bfg.APIClient
	http      *http.Client
	baseURL   string
	projectID string

	// ConfirmInterval is the poll period while waiting for a submitted
	// transaction to appear on chain.
	ConfirmInterval time.Duration
}

func New(projectID, network string) (*Provider, error) {
	baseURL, ok := networkURLs[network]
	if !ok {
		return nil, fmt.Errorf("unknown network %q", network)
	}
	return &Provider{
		client: bfg.NewAPIClient(bfg.APIClientOptions{
			ProjectID: projectID,
			Server:    baseURL,
		}),
		http:            &http.Client{Timeout: 30 * time.Second},
		baseURL:         baseURL,
		projectID:       projectID,
		ConfirmInterval: 5 * time.Second,
	}, nil
}

type Amount struct {
	Unit     string `json:"unit,omitempty"`
	Quantity string `json:"quantity,omitempty"`
}

type UTxO struct {
	Address             string   `json:"address,omitempty"`
	TxHash              string   `json:"tx_hash,omitempty"`
	OutputIndex         int      `json:"output_index"`
	Amount              []Amount `json:"amount,omitempty"`
	Block               string   `json:"block,omitempty"`
	DataHash            string   `json:"data_hash,omitempty"`
	InlineDatum         string   `json:"inline_datum,omitempty"`
	ReferenceScriptHash string   `json:"reference_script_hash,omitempty"`
}

type TxUTxOs struct {
	Hash    string `json:"hash,omitempty"`
	Inputs  []UTxO `json:"inputs,omitempty"`
	Outputs []UTxO `json:"outputs,omitempty"`
}

type apiError struct {
	StatusCode int    `json:"status_code,omitempty"`
	ErrorName  string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (e apiError) Error() string {
	return fmt.Sprintf("blockfrost: %s (%d): %s", e.ErrorName, e.StatusCode, e.Message)
}

// AddressUTxOs returns every UTxO at an address. An address the chain has
// never seen yields an empty list, not an error.
func (p *Provider) AddressUTxOs(ctx context.Context, address string) ([]UTxO, error) {
	return p.pagedUTxOs(ctx, fmt.Sprintf("%s/addresses/%s/utxos", p.baseURL, address))
}

// AddressUTxOsAsset returns the UTxOs at an address containing the given
// asset unit (policy id + hex asset name), most recent first.
func (p *Provider) AddressUTxOsAsset(ctx context.Context, address, unit string) ([]UTxO, error) {
	return p.pagedUTxOs(ctx, fmt.Sprintf("%s/addresses/%s/utxos/%s", p.baseURL, address, unit))
}

func (p *Provider) pagedUTxOs(ctx context.Context, endpoint string) ([]UTxO, error) {
	var all []UTxO
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s?order=desc&count=%d&page=%d", endpoint, pageSize, page)
		var batch []UTxO
		notFound, err := p.get(ctx, url, &batch)
		if err != nil {
			return nil, err
		}
		if notFound {
			// Unused addresses 404 on Blockfrost; that simply means no UTxOs.
			return all, nil
		}
		all = append(all, batch...)
		if len(batch) < pageSize {
			return all, nil
		}
	}
}

// TxUTxOs returns the inputs and outputs of a transaction, or an error when
// the transaction is unknown to the provider.
func (p *Provider) TxUTxOs(ctx context.Context, txHash string) (*TxUTxOs, error) {
	var out TxUTxOs
	notFound, err := p.get(ctx, fmt.Sprintf("%s/txs/%s/utxos", p.baseURL, txHash), &out)
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, fmt.Errorf("transaction %s not found", txHash)
	}
	return &out, nil
}

// SubmitTx posts a signed transaction (CBOR hex) and returns its hash.
func (p *Provider) SubmitTx(ctx context.Context, txCborHex string) (string, error) {
	raw, err := hex.DecodeString(txCborHex)
	if err != nil {
		return "", fmt.Errorf("transaction is not hex: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/tx/submit", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("project_id", p.projectID)
	req.Header.Set("Content-Type", "application/cbor")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp.StatusCode, body)
	}

	var txHash string
	if err := json.Unmarshal(body, &txHash); err != nil {
		return "", fmt.Errorf("parse submit response: %w", err)
	}
	logger.Record.Info("BLOCKFROST", "SUBMITTED", txHash)
	return txHash, nil
}

// WaitForTx blocks until the transaction appears on chain or the context is
// cancelled. There is deliberately no deadline of its own; callers own the
// timeout policy.
func (p *Provider) WaitForTx(ctx context.Context, txHash string) error {
	ticker := time.NewTicker(p.ConfirmInterval)
	defer ticker.Stop()

	for {
		var ignored json.RawMessage
		notFound, err := p.get(ctx, fmt.Sprintf("%s/txs/%s", p.baseURL, txHash), &ignored)
		if err != nil {
			return err
		}
		if !notFound {
			logger.Record.Info("BLOCKFROST", "CONFIRMED", txHash)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// get performs an authenticated GET. The bool result reports a 404, which
// several callers treat as an empty result rather than a failure.
func (p *Provider) get(ctx context.Context, url string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("project_id", p.projectID)

	resp, err := p.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, decodeAPIError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("parse provider response: %w", err)
	}
	return false, nil
}

func decodeAPIError(status int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		return fmt.Errorf("blockfrost: API error %d: %s", status, string(body))
	}
	apiErr.StatusCode = status
	return apiErr
}
