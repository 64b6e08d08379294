package cardano

import (
	"cardano-forge/pkg/logger"
	"os/exec"
)

type CommandArgs []string

// Run executes an external chain tool (cardano-cli, cardano-address, aiken)
// and returns its combined output. Every invocation is logged.
func Run(bin string, args CommandArgs) ([]byte, error) {
	logger.Record.Info("CARDANO", "BIN", bin, "COMMAND", args)
	output, err := exec.Command(bin, args...).CombinedOutput()
	if err != nil {
		logger.Record.Error("CARDANO", "ERROR", err, "OUTPUT", string(output))
	}
	logger.Record.Debug("CARDANO", "OUTPUT", string(output))

	return output, err
}
