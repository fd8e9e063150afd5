package main

import (
	"fmt"
	"os"

	"github.com/ouroboros-ntn/ntnclient/cli/client"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "ntn-client"
	app.Usage = "Ouroboros node-to-node handshake/tip/peer-sharing client"
	app.Version = "0.1.0"
	app.Commands = client.NewCommands()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
