package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "cdnsync",
		Usage: "Bulk-sync blocks from a CDN into ClickHouse",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the CDN sync pipeline",
				Flags:  runFlags(),
				Action: run,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
