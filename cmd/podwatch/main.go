package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// exitInterrupted follows the shell convention for termination by SIGINT.
const exitInterrupted = 130

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stderr))
}

func execute(ctx context.Context, args []string, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		fmt.Fprintf(stderr, "podwatch: %v\n", err)
		return 1
	}
}
