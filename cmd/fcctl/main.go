package main

import (
	"github.com/robotalks/gse.go/pkg/cli/sh"

	_ "github.com/robotalks/gse.go/pkg/cli/cmds/fc"
)

//go-build: CGO_ENABLED=0

func main() {
	sh.Main()
}
