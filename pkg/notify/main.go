// Package notify posts operation announcements to a Discord channel.
// Entirely optional; a nil *Notifier is a no-op.
package notify

import (
	"fmt"

	"cardano-forge/pkg/forge"
	"cardano-forge/pkg/logger"

	"github.com/bwmarrin/discordgo"
)

type Notifier struct {
	session   *discordgo.Session
	channelID string
}

func New(token, channelID string) (*Notifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &Notifier{session: session, channelID: channelID}, nil
}

// Operation announces a confirmed transaction. Errors are logged and
// swallowed; notifications never fail a request.
func (n *Notifier) Operation(op string, course forge.CourseID, assetNames []string, txHash string) {
	if n == nil {
		return
	}
	msg := fmt.Sprintf("**%s** on course `%s`: %v (tx `%s`)",
		op, course, assetNames, forge.TruncateMiddle(txHash, 16))
	if _, err := n.session.ChannelMessageSend(n.channelID, msg); err != nil {
		logger.Record.Error("NOTIFY", "ERROR", err, "TX", txHash)
	}
}
