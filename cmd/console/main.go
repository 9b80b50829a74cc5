package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/gophadmin/internal/client/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
