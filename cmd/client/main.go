package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/closetapp/closet-sync/internal/client/cli"
)

const usage = `usage: closet-sync [-config path] <command>

commands:
  login    store the server credential
  sync     run one synchronization pass
  auto     run recurring sync until interrupted
  status   show sync metadata
`

func main() {
	cfgPath := flag.String("config", "", "config file path")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	ctx := context.Background()
	app, err := cli.NewApp(ctx, *cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "closet-sync: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	switch command {
	case "login":
		err = app.Login(ctx)
	case "sync":
		err = app.SyncOnce(ctx)
	case "auto":
		err = app.Auto(ctx)
	case "status":
		err = app.Status(ctx)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "closet-sync: %v\n", err)
		os.Exit(1)
	}
}
