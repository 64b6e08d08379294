package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// Config carries everything the service needs from the environment. Secrets
// (provider token, wallet mnemonic) never leave this struct.
type Config struct {
	// Blockfrost
	BlockfrostProjectID string
	Network             string // mainnet, preprod, preview

	// Wallet. Either a 24-word mnemonic or a pre-derived signing key pair
	// on disk. Mnemonic wins when both are set.
	WalletMnemonic   string
	WalletDir        string
	WalletSigningKey string // payment.skey path
	WalletVerifyKey  string // payment.vkey path
	WalletAddress    string

	// Compiled-contract descriptor (aiken blueprint) and tool paths.
	BlueprintPath  string
	AikenBin       string
	CardanoCLIBin  string
	CardanoAddrBin string

	ListenAddr string

	// Optional collaborators
	MongoURI       string
	DiscordToken   string
	DiscordChannel string
}

var validNetworks = map[string]struct{}{
	"mainnet": {},
	"preprod": {},
	"preview": {},
}

func Load() (*Config, error) {
	c := &Config{
		BlockfrostProjectID: os.Getenv("FORGE_BLOCKFROST_PROJECT_ID"),
		Network:             strings.ToLower(os.Getenv("FORGE_NETWORK")),
		WalletMnemonic:      os.Getenv("FORGE_WALLET_MNEMONIC"),
		WalletDir:           os.Getenv("FORGE_WALLET_DIR"),
		WalletSigningKey:    os.Getenv("FORGE_WALLET_SKEY"),
		WalletVerifyKey:     os.Getenv("FORGE_WALLET_VKEY"),
		WalletAddress:       os.Getenv("FORGE_WALLET_ADDRESS"),
		BlueprintPath:       os.Getenv("FORGE_BLUEPRINT"),
		AikenBin:            os.Getenv("FORGE_AIKEN_BIN"),
		CardanoCLIBin:       os.Getenv("FORGE_CARDANO_CLI_BIN"),
		CardanoAddrBin:      os.Getenv("FORGE_CARDANO_ADDRESS_BIN"),
		ListenAddr:          os.Getenv("FORGE_LISTEN"),
		MongoURI:            os.Getenv("FORGE_MONGODB_URI"),
		DiscordToken:        os.Getenv("FORGE_DISCORD_TOKEN"),
		DiscordChannel:      os.Getenv("FORGE_DISCORD_CHANNEL"),
	}

	if c.Network == "" {
		c.Network = "preprod"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.BlueprintPath == "" {
		c.BlueprintPath = "plutus.json"
	}
	if c.AikenBin == "" {
		c.AikenBin = "aiken"
	}
	if c.CardanoCLIBin == "" {
		c.CardanoCLIBin = "/usr/local/bin/cardano-cli"
	}
	if c.CardanoAddrBin == "" {
		c.CardanoAddrBin = "cardano-address"
	}
	if c.WalletDir == "" {
		c.WalletDir = "wallet"
	}

	return c, c.Validate()
}

func (c *Config) Validate() error {
	var errs []error

	if c.BlockfrostProjectID == "" {
		errs = append(errs, errors.New("FORGE_BLOCKFROST_PROJECT_ID is required"))
	}
	if _, ok := validNetworks[c.Network]; !ok {
		errs = append(errs, fmt.Errorf("unknown network %q (want mainnet, preprod or preview)", c.Network))
	}
	if c.WalletMnemonic == "" && c.WalletSigningKey == "" {
		errs = append(errs, errors.New("one of FORGE_WALLET_MNEMONIC or FORGE_WALLET_SKEY is required"))
	}
	if c.WalletMnemonic != "" && !bip39.IsMnemonicValid(c.WalletMnemonic) {
		errs = append(errs, errors.New("FORGE_WALLET_MNEMONIC failed BIP-39 checksum validation"))
	}
	if c.WalletMnemonic == "" && c.WalletSigningKey != "" && c.WalletAddress == "" {
		errs = append(errs, errors.New("FORGE_WALLET_ADDRESS is required when using a signing-key file"))
	}
	if (c.DiscordToken == "") != (c.DiscordChannel == "") {
		errs = append(errs, errors.New("FORGE_DISCORD_TOKEN and FORGE_DISCORD_CHANNEL must be set together"))
	}

	return errors.Join(errs...)
}

// Mainnet reports whether the configured network is the production chain.
func (c *Config) Mainnet() bool {
	return c.Network == "mainnet"
}
