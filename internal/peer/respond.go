package peer

import (
	"strings"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/ipc"
)

// send delivers a reply. A command without a reply endpoint is a
// deliberate fire-and-forget, and a sender that vanished between
// command and reply is expected fleet behaviour; neither is an error
// the responding daemon can act on.
func send(cmd, response *ipc.Envelope) {
	_ = ipc.Reply(cmd, response)
}

// Accept acknowledges a command as accepted for execution.
func Accept(origin string, cmd *ipc.Envelope) {
	send(cmd, ipc.NewAck(origin, cmd, true, nil))
}

// Reject refuses a command at validation time with a failed ack. No
// result follows a rejection.
func Reject(origin string, cmd *ipc.Envelope, code, msg string) {
	send(cmd, ipc.NewAck(origin, cmd, false, &ipc.Error{Code: code, Message: msg}))
}

// Finish reports a successfully executed command.
func Finish(origin string, cmd *ipc.Envelope, payload ipc.Payload) {
	send(cmd, ipc.NewResult(origin, cmd, true, payload, nil))
}

// Fail reports a command that was accepted but failed during
// execution.
func Fail(origin string, cmd *ipc.Envelope, code, msg string) {
	send(cmd, ipc.NewResult(origin, cmd, false, nil, &ipc.Error{Code: code, Message: msg}))
}

// HandleCommon executes the commands every daemon answers: its own
// *_PING and *_SET_DEBUG (the prefix differs per daemon, BD_CMD_PING
// versus NFC_CMD_PING and so on). Returns true when cmd was one of
// them.
//
// PING acks and returns {"status": "ok"}. SET_DEBUG validates the
// requested level, applies it to the daemon's logger at runtime, and
// returns the level now in effect.
func HandleCommon(origin string, cmd *ipc.Envelope, log *logging.Logger) bool {
	switch {
	case strings.HasSuffix(cmd.Cmd, ipc.SuffixPing):
		Accept(origin, cmd)
		Finish(origin, cmd, ipc.Payload{"status": "ok", "daemon": origin})
		return true

	case strings.HasSuffix(cmd.Cmd, ipc.SuffixSetDebug):
		level := cmd.Payload.String("level")
		if !logging.ValidLevel(level) {
			Reject(origin, cmd, ipc.CodeBadPayload, "level must be one of debug, info, warn, error, none")
			return true
		}
		Accept(origin, cmd)
		log.SetLevel(level)
		log.Info("log level changed", "level", level, "requested_by", cmd.Origin)
		Finish(origin, cmd, ipc.Payload{"level": level})
		return true
	}
	return false
}
