package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"photobooth/internal/cli"
)

func main() {
	root := cli.NewRoot()
	cmd := cli.NewRootCmd(root)

	if err := fang.Execute(
		context.Background(),
		cmd,
		fang.WithVersion(cli.Version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
