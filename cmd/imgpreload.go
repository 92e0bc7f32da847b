package main

import (
	"fmt"
	"os"

	"github.com/aceeric/imgpreload/cmd/subcmd"
	"github.com/aceeric/imgpreload/impl/config"
	"github.com/aceeric/imgpreload/impl/globals"
)

// set by the build
var (
	buildVer string
	buildDtm string
)

func main() {
	command, err := getCfg()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	globals.ConfigureLogging(config.GetLogLevel(), config.GetLogFile())
	switch command {
	case "load":
		err = subcmd.Load()
	case "serve":
		err = subcmd.Serve(buildVer, buildDtm)
	case "list":
		err = subcmd.List(os.Stdout)
	case "version":
		fmt.Printf("imgpreload version: %s build date: %s\n", buildVer, buildDtm)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
