package main

import (
	"fmt"
	"os"

	"fjacquet/sms-ledger/cmd/fetch"
	"fjacquet/sms-ledger/cmd/importcmd"
	"fjacquet/sms-ledger/cmd/parse"
	"fjacquet/sms-ledger/cmd/root"
	"fjacquet/sms-ledger/cmd/serve"
)

func init() {
	root.Init()

	root.Cmd.AddCommand(serve.Cmd)
	root.Cmd.AddCommand(fetch.Cmd)
	root.Cmd.AddCommand(importcmd.Cmd)
	root.Cmd.AddCommand(parse.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
