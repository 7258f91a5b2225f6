package main

import (
	"context"
	"fmt"
	"os"
	"time"

	cli "github.com/spf13/pflag"

	"speechcmd/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.SocketPath, "Control socket path")
	timeout := cli.DurationP("timeout", "t", 2*time.Minute, "How long to wait for the daemon")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: speechcmd-ctl [flags] <listen|say TEXT|file PATH|replay|stop|history|log [N]|stats|clear|export|execute TOKEN>")
		cli.PrintDefaults()
	}
	cli.Parse()

	msg := ipc.ControlMessage{Cmd: "listen"}
	if args := cli.Args(); len(args) > 0 {
		msg = ipc.ControlMessage{Cmd: args[0], Args: args[1:]}
	}

	reply, err := ipc.Send(context.Background(), *socket, msg, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, render(ipc.Reply{Message: "speechcmd-daemon not running: " + err.Error()}))
		os.Exit(1)
	}

	fmt.Println(render(reply))
	if !reply.OK {
		os.Exit(1)
	}
}
