package flow

import "strings"

type Command string

const CMD_START Command = "start"
const CMD_CONTINUE Command = "continue"
const CMD_STOP Command = "stop"
const CMD_RESTART Command = "restart"

// CMD_DELIVER and CMD_MESSAGE label data deliveries and free-text input; they never come
// out of ParseCommand.
const CMD_DELIVER Command = "deliver"
const CMD_MESSAGE Command = "message"

var commandWords = map[string]Command{
	"start":     CMD_START,
	"iniciar":   CMD_START,
	"continue":  CMD_CONTINUE,
	"ok":        CMD_CONTINUE,
	"continuar": CMD_CONTINUE,
	"stop":      CMD_STOP,
	"cancel":    CMD_STOP,
	"cancelar":  CMD_STOP,
	"restart":   CMD_RESTART,
	"reiniciar": CMD_RESTART,
}

// ParseCommand maps free text onto a command keyword, ignoring case and surrounding space.
func ParseCommand(text string) (Command, bool) {
	cmd, ok := commandWords[strings.ToLower(strings.TrimSpace(text))]
	return cmd, ok
}
