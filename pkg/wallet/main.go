// Package wallet wraps the service's signing wallet. Key management and
// signing stay in the external cardano tooling; this package only derives the
// key files once, loads them, and knows the wallet's payment credential.
package wallet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"cardano-forge/pkg/cardano"
	"cardano-forge/pkg/config"
	"cardano-forge/pkg/logger"

	"github.com/tyler-smith/go-bip39"
)

var (
	PaymentKeySuffix = "payment.vkey"
	SigningKeySuffix = "payment.skey"
	AddressSuffix    = "payment.addr"
)

type Wallet struct {
	address    string
	pubKeyHash string
	skeyFile   string
	vkeyFile   string
	cliBin     string
	network    string
}

// Load materializes the service wallet from configuration. A configured
// mnemonic is derived into key files under the wallet directory on first use;
// otherwise pre-derived key files are loaded as-is.
func Load(cfg *config.Config) (*Wallet, error) {
	w := &Wallet{
		cliBin:  cfg.CardanoCLIBin,
		network: cfg.Network,
	}

	if cfg.WalletMnemonic != "" {
		if !bip39.IsMnemonicValid(cfg.WalletMnemonic) {
			return nil, errors.New("wallet mnemonic failed BIP-39 validation")
		}
		if err := deriveKeyFiles(cfg, cfg.WalletDir); err != nil {
			return nil, err
		}
		w.skeyFile = filepath.Join(cfg.WalletDir, SigningKeySuffix)
		w.vkeyFile = filepath.Join(cfg.WalletDir, PaymentKeySuffix)
		addr, err := os.ReadFile(filepath.Join(cfg.WalletDir, AddressSuffix))
		if err != nil {
			return nil, fmt.Errorf("read wallet address: %w", err)
		}
		w.address = strings.TrimSpace(string(addr))
	} else {
		w.skeyFile = cfg.WalletSigningKey
		w.vkeyFile = cfg.WalletVerifyKey
		w.address = cfg.WalletAddress
		if _, err := os.Stat(w.skeyFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("signing key file does not exist: %s", w.skeyFile)
		}
	}

	pkh, err := w.loadPubKeyHash()
	if err != nil {
		return nil, err
	}
	w.pubKeyHash = pkh

	return w, nil
}

func (w *Wallet) Address() string {
	return w.address
}

// PubKeyHash returns the wallet's payment credential hash in hex. It is the
// value stored in reference-token datums as the owner and attached to
// transactions as the required signer.
func (w *Wallet) PubKeyHash() string {
	return w.pubKeyHash
}

// SignTx signs a transaction body file into outFile with the wallet's
// payment key.
func (w *Wallet) SignTx(bodyFile, outFile string) error {
	args := cardano.CommandArgs{
		"conway", "transaction", "sign",
		"--tx-body-file", bodyFile,
		"--signing-key-file", w.skeyFile,
		"--out-file", outFile,
	}
	args = append(args, cardano.NetworkArgs(w.network)...)
	output, err := cardano.Run(w.cliBin, args)
	if err != nil {
		logger.Record.Error("WALLET", "ERROR", "Failed to sign transaction", "OUTPUT", string(output))
		return fmt.Errorf("sign transaction: %w", err)
	}
	return nil
}

func (w *Wallet) loadPubKeyHash() (string, error) {
	if w.vkeyFile != "" {
		raw, err := os.ReadFile(w.vkeyFile)
		if err != nil {
			return "", fmt.Errorf("read verification key: %w", err)
		}
		var envelope struct {
			CborHex string `json:"cborHex"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return "", fmt.Errorf("parse verification key envelope: %w", err)
		}
		return cardano.VerificationKeyHash(envelope.CborHex)
	}
	// No vkey on disk; fall back to the credential inside the address.
	return cardano.PaymentKeyHash(w.address)
}

// deriveKeyFiles runs the cardano-address / cardano-cli derivation chain for
// the configured mnemonic. Files already on disk are left alone, so the
// derivation happens once per wallet directory.
func deriveKeyFiles(cfg *config.Config, dir string) error {
	skey := filepath.Join(dir, SigningKeySuffix)
	if _, err := os.Stat(skey); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create wallet dir: %w", err)
	}

	rootKey, err := pipe(cfg.CardanoAddrBin, []byte(cfg.WalletMnemonic),
		"key", "from-recovery-phrase", "Shelley")
	if err != nil {
		return fmt.Errorf("derive root key: %w", err)
	}
	paymentXsk, err := pipe(cfg.CardanoAddrBin, rootKey,
		"key", "child", "1852H/1815H/0H/0/0")
	if err != nil {
		return fmt.Errorf("derive payment key: %w", err)
	}

	xskFile := filepath.Join(dir, "payment.xsk")
	if err := os.WriteFile(xskFile, paymentXsk, 0o600); err != nil {
		return err
	}

	vkey := filepath.Join(dir, PaymentKeySuffix)
	steps := []cardano.CommandArgs{
		{
			"key", "convert-cardano-address-key", "--shelley-payment-key",
			"--signing-key-file", xskFile,
			"--out-file", skey,
		},
		{
			"key", "verification-key",
			"--signing-key-file", skey,
			"--verification-key-file", vkey,
		},
	}
	for _, args := range steps {
		if _, err := cardano.Run(cfg.CardanoCLIBin, args); err != nil {
			return fmt.Errorf("convert wallet keys: %w", err)
		}
	}

	addrArgs := cardano.CommandArgs{
		"address", "build",
		"--payment-verification-key-file", vkey,
		"--out-file", filepath.Join(dir, AddressSuffix),
	}
	addrArgs = append(addrArgs, cardano.NetworkArgs(cfg.Network)...)
	if _, err := cardano.Run(cfg.CardanoCLIBin, addrArgs); err != nil {
		return fmt.Errorf("build wallet address: %w", err)
	}

	return nil
}

func pipe(bin string, stdin []byte, args ...string) ([]byte, error) {
	logger.Record.Info("WALLET", "BIN", bin, "COMMAND", args)
	cmd := exec.Command(bin, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	out, err := cmd.Output()
	if err != nil {
		logger.Record.Error("WALLET", "ERROR", err)
		return nil, err
	}
	return bytes.TrimSpace(out), nil
}
