package main

import (
	"os"

	"github.com/wnxd/memdbg/cmd/memdbg/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
