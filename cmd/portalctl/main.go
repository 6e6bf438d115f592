package main

import (
	"os"

	"github.com/goliatone/go-portal-auth/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
