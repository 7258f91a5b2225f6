package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strconv"
	"strings"
	"time"

	"speechcmd/internal/ipc"
	"speechcmd/internal/recognizer"
	"speechcmd/pkg/command"
)

// Control answers one request from the control socket.
func (a *Assistant) Control(ctx context.Context, msg ipc.ControlMessage) ipc.Reply {
	switch msg.Cmd {
	case "listen":
		text, err := a.Listen(ctx)
		if err != nil {
			return failure(err)
		}
		return ipc.Reply{OK: true, Message: text}

	case "say":
		text := strings.Join(msg.Args, " ")
		if strings.TrimSpace(text) == "" {
			return ipc.Reply{Message: "say: text required"}
		}
		token, err := a.HandleTranscript(ctx, text)
		return transcriptReply(text, token, err)

	case "file":
		if len(msg.Args) != 1 {
			return ipc.Reply{Message: "file: exactly one path required"}
		}
		text, token, err := a.TranscribeFile(ctx, msg.Args[0])
		if err != nil && text == "" {
			return failure(err)
		}
		return transcriptReply(text, token, err)

	case "replay":
		report, err := a.Replay(ctx)
		if err != nil {
			return failure(err)
		}
		lines := make([]string, 0, len(report.Outcomes))
		for _, o := range report.Outcomes {
			mark := "ok"
			if !o.OK {
				mark = "failed"
			}
			lines = append(lines, fmt.Sprintf("%-16s %-6s %s", o.Token, mark, o.Message))
		}
		return ipc.Reply{OK: !report.Interrupted, Message: report.Message, Lines: lines}

	case "stop":
		if !a.StopReplay() {
			return ipc.Reply{Message: "no replay running"}
		}
		return ipc.Reply{OK: true, Message: "Replay stopped"}

	case "history":
		tokens := a.History()
		lines := make([]string, len(tokens))
		for i, t := range tokens {
			lines[i] = t.String()
		}
		return ipc.Reply{OK: true, Message: fmt.Sprintf("%d recent commands", len(lines)), Lines: lines}

	case "log":
		n := 0
		if len(msg.Args) > 0 {
			v, err := strconv.Atoi(msg.Args[0])
			if err != nil || v < 0 {
				return ipc.Reply{Message: fmt.Sprintf("log: invalid count %q", msg.Args[0])}
			}
			n = v
		}
		lines, err := a.Lines(ctx, n)
		if err != nil {
			return failure(err)
		}
		return ipc.Reply{OK: true, Message: fmt.Sprintf("%d entries", len(lines)), Lines: lines}

	case "stats":
		st, err := a.Stats(ctx)
		if err != nil {
			return failure(err)
		}
		stats := map[string]any{
			"exists":   st.Exists,
			"entries":  st.Entries,
			"commands": st.Commands,
			"size":     st.Size,
			"location": st.Location,
			"history":  len(a.History()),
		}
		if !st.Modified.IsZero() {
			stats["modified"] = st.Modified.Format(time.DateTime)
		}
		return ipc.Reply{OK: true, Stats: stats}

	case "clear":
		if err := a.Clear(ctx); err != nil {
			return failure(err)
		}
		return ipc.Reply{OK: true, Message: "Commands cleared"}

	case "export":
		text, err := a.Export(ctx)
		if err != nil {
			return failure(err)
		}
		if text == "" {
			return ipc.Reply{Message: "No commands file found"}
		}
		return ipc.Reply{OK: true, Lines: strings.Split(strings.TrimRight(text, "\n"), "\n")}

	case "execute":
		if len(msg.Args) != 1 {
			return ipc.Reply{Message: "execute: exactly one token required"}
		}
		token, ok := command.Parse(strings.ToUpper(msg.Args[0]))
		if !ok {
			return ipc.Reply{Message: "Unknown command: " + msg.Args[0]}
		}
		out := a.Execute(ctx, token)
		return ipc.Reply{OK: out.OK, Message: out.Message}

	default:
		log.Warn("Unknown control command", "cmd", msg.Cmd)
		return ipc.Reply{Message: "unknown command: " + msg.Cmd}
	}
}

func transcriptReply(text string, token command.Token, err error) ipc.Reply {
	switch {
	case token.IsUnknown():
		return ipc.Reply{Message: fmt.Sprintf("Unknown command: %q", text)}
	case err != nil:
		return ipc.Reply{Message: "Error saving command", Lines: []string{token.String()}}
	}
	return ipc.Reply{OK: true, Message: "Command registered: " + token.String(), Lines: []string{token.String()}}
}

func failure(err error) ipc.Reply {
	var rerr *recognizer.Error
	if errors.As(err, &rerr) {
		return ipc.Reply{Message: rerr.Code.String()}
	}
	return ipc.Reply{Message: err.Error()}
}
