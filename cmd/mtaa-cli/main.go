package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mtaadao/mtaa-realtime/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
