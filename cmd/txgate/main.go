package main

import (
	"context"
	"fmt"
	"os"

	"github.com/txgate/txgate/cmd/txgate/cli"
	"github.com/txgate/txgate/internal/app"
)

func main() {
	if app.InTestMode() {
		return
	}
	if err := cli.NewRootCommand(os.Stdout).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "txgate:", err)
		os.Exit(1)
	}
}
