package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	fx "github.com/robotalks/gse.go/pkg/framework"
	"github.com/robotalks/gse.go/pkg/gse/env"
)

func init() {
	if err := env.Setup(); err != nil {
		glog.Exitf("setup: %v", err)
	}
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.NewConfig()
	runner := fx.NewRunner().HandleSignals()
	e := conf.MustNewEnv(runner.Context)
	defer e.Close()

	if err := runner.Go(e.Runnables()...).Wait(); err != nil {
		glog.Errorf("gsed: %v", err)
	}
	glog.Info("gsed stopped")
}
