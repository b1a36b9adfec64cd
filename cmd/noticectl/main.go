// Command noticectl inspects the notice board from a terminal.
package main

import (
	"context"
	"os"
	"os/signal"

	"noticeboard-notifier/cmd/noticectl/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	commands.ExecuteContext(ctx)
}
