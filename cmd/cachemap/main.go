package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"tableflip.dev/cachemap/pkg/commands"
)

func main() {
	if err := fang.Execute(
		context.Background(),
		commands.New(),
		fang.WithVersion(commands.Version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
