// Hearo Core - command-line command sender
//
// hearo-send fires a single command at a daemon endpoint and prints
// the reply. It is the shell-side counterpart of the daemons' command
// surface, used for poking a live device during bring-up and from
// maintenance scripts:
//
//	hearo-send plsm PLSM_COMMAND_PLAY_TAG uid=04AABBCC
//	hearo-send -notify ledd LED_OFF
//	hearo-send plsm PLSM_COMMAND_SEEK delta_ms:=-15000
//
// Payload arguments are key=value pairs. key=value sends a string;
// key:=value parses the value as JSON for numbers and booleans.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hearo-audio/hearo-core/internal/ipc"
)

const originCLI = "cli"

// sockets maps daemon short names to their endpoint files. The
// orchestrator listens on the shared events socket.
var sockets = map[string]string{
	ipc.OriginOrchestrator: "events.sock",
	ipc.OriginButtons:      "bd.sock",
	ipc.OriginNFC:          "nfcd.sock",
	ipc.OriginWiFi:         "wsm.sock",
	ipc.OriginPlayer:       "plsm.sock",
	ipc.OriginPower:        "powd.sock",
	ipc.OriginLED:          "ledd.sock",
	ipc.OriginBridge:       "bridge.sock",
}

func main() {
	dir := flag.String("dir", defaultSocketDir(), "socket directory the daemons bind in")
	timeout := flag.Duration("timeout", 2*time.Second, "how long to wait for the result")
	notify := flag.Bool("notify", false, "fire and forget, do not wait for a reply")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 2 {
		usage()
		os.Exit(2)
	}

	if err := run(*dir, flag.Arg(0), flag.Arg(1), flag.Args()[2:], *timeout, *notify); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: hearo-send [flags] <daemon> <COMMAND> [key=value ...]

daemon is one of: hcsm bd nfcd wsm plsm powd ledd bridge,
or a socket path.

flags:
`)
	flag.PrintDefaults()
}

func defaultSocketDir() string {
	if v := os.Getenv("HEARO_IPC_SOCKET_DIR"); v != "" {
		return v
	}
	return "/tmp/hearo"
}

func run(dir, daemon, cmd string, args []string, timeout time.Duration, notify bool) error {
	target, err := resolveTarget(dir, daemon)
	if err != nil {
		return err
	}
	payload, err := parsePayload(args)
	if err != nil {
		return err
	}

	// The reply endpoint lives alongside the daemon sockets so the
	// answering daemon can always reach it.
	replyPath := filepath.Join(dir, fmt.Sprintf("send-%d.sock", os.Getpid()))
	ep, err := ipc.Bind(replyPath, ipc.WithReceiveWait(50*time.Millisecond))
	if err != nil {
		return err
	}
	defer ep.Close()

	client := ipc.NewClient(originCLI, ep, nil)
	if notify {
		client.Notify(target, cmd, payload)
		return nil
	}

	sent, err := client.Send(target, cmd, payload, timeout)
	if err != nil {
		return err
	}
	reply, err := client.AwaitReply(context.Background(), sent, time.Now().Add(timeout), nil)
	if err != nil {
		if err == ipc.ErrTimeout {
			return fmt.Errorf("no reply from %s within %v", target, timeout)
		}
		return err
	}

	out, err := json.MarshalIndent(reply, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !reply.IsOK() {
		return fmt.Errorf("%s rejected %s", daemon, cmd)
	}
	return nil
}

// resolveTarget accepts a daemon short name or a literal socket path.
func resolveTarget(dir, daemon string) (string, error) {
	if strings.ContainsRune(daemon, os.PathSeparator) {
		return daemon, nil
	}
	name, ok := sockets[daemon]
	if !ok {
		return "", fmt.Errorf("unknown daemon %q", daemon)
	}
	return filepath.Join(dir, name), nil
}

// parsePayload turns key=value arguments into a command payload.
// key=value is always a string; key:=value goes through the JSON
// parser so numbers and booleans keep their type. UIDs made of digits
// stay strings that way.
func parsePayload(args []string) (ipc.Payload, error) {
	if len(args) == 0 {
		return nil, nil
	}
	payload := ipc.Payload{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("payload argument %q is not key=value", arg)
		}
		if raw, isJSON := strings.CutSuffix(key, ":"); isJSON && raw != "" {
			var parsed interface{}
			if err := json.Unmarshal([]byte(value), &parsed); err != nil {
				return nil, fmt.Errorf("payload argument %q: %w", arg, err)
			}
			payload[raw] = parsed
			continue
		}
		payload[key] = value
	}
	return payload, nil
}
