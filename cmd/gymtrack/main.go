package main

import (
	"context"
	"fmt"
	"os"

	"github.com/msomdec/gymtrack/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "gymtrack:", err)
		os.Exit(1)
	}
}
