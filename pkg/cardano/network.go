package cardano

// NetworkArgs maps a network selector onto the cardano-cli flag pair.
func NetworkArgs(network string) []string {
	switch network {
	case "mainnet":
		return []string{"--mainnet"}
	case "preprod":
		return []string{"--testnet-magic", "1"}
	case "preview":
		return []string{"--testnet-magic", "2"}
	}
	return []string{"--testnet-magic", "1"}
}
