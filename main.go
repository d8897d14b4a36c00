package main

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/chainstore/cmd"
	"github.com/mezonai/chainstore/logx"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			_ = logx.Errorf("CHAINSTORE CRASHED: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
