package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/photon-storage/go-common/log"

	"github.com/scobru/shogun-relay/api/server"
	"github.com/scobru/shogun-relay/api/service"
	"github.com/scobru/shogun-relay/cmd"
	"github.com/scobru/shogun-relay/cmd/runtime/version"
	"github.com/scobru/shogun-relay/config"
	"github.com/scobru/shogun-relay/relay"
)

func main() {
	app := cli.App{
		Name:    "shogun-relay",
		Usage:   "storage deal broker between clients and the storage network",
		Action:  exec,
		Version: version.Get(),
		Flags: []cli.Flag{
			cmd.ConfigPathFlag,
			cmd.VerbosityFlag,
			cmd.LogFormatFlag,
		},
	}

	app.Before = func(ctx *cli.Context) error {
		logLvl, err := log.ParseLevel(ctx.String(cmd.VerbosityFlag.Name))
		if err != nil {
			return err
		}

		logFmt, err := log.ParseFormat(ctx.String(cmd.LogFormatFlag.Name))
		if err != nil {
			return err
		}

		return log.Init(logLvl, logFmt)
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("running relay application failed", "error", err)
	}
}

func exec(ctx *cli.Context) error {
	cfg := &config.RelayConfig{}
	if err := config.Load(ctx.String(cmd.ConfigPathFlag.Name), cfg); err != nil {
		log.Fatal("reading relay config failed", "error", err)
	}

	db, err := relay.NewDB(cfg.MySQL)
	if err != nil {
		log.Fatal("initialize mysql db error", "error", err)
	}

	rc, err := relay.NewContext(cfg, db)
	if err != nil {
		log.Fatal("initialize relay error", "error", err)
	}

	rc.Tasks.Start()
	defer rc.Tasks.Stop()

	go rc.SyncJob.Run(ctx.Context)

	server.New(cfg.Port, service.New(service.Opts{
		DB:         db,
		Manager:    rc.Manager,
		Store:      rc.Store,
		Reconciler: rc.Reconciler,
		Pricing:    rc.Pricing,
		Verifier:   rc.Verifier,
		Tracker:    rc.Tracker,
		ErasureCfg: cfg.Erasure,
		SyncJob:    rc.SyncJob,
	})).Run()
	return nil
}
