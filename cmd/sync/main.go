package main

import (
	"os"

	gocache "github.com/patrickmn/go-cache"
	"github.com/urfave/cli/v2"

	"github.com/photon-storage/go-common/log"

	"github.com/scobru/shogun-relay/chain"
	"github.com/scobru/shogun-relay/cmd"
	"github.com/scobru/shogun-relay/cmd/runtime/version"
	"github.com/scobru/shogun-relay/config"
	"github.com/scobru/shogun-relay/deal"
	"github.com/scobru/shogun-relay/graph"
	"github.com/scobru/shogun-relay/ipfs"
	"github.com/scobru/shogun-relay/relay"
	"github.com/scobru/shogun-relay/sync"
)

func main() {
	app := cli.App{
		Name:    "shogun-relay-sync",
		Usage:   "standalone deal sync job for the relay",
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
		log.Error("running sync application failed", "error", err)
	}
}

func exec(ctx *cli.Context) error {
	cfg := &config.SyncerConfig{}
	if err := config.Load(ctx.String(cmd.ConfigPathFlag.Name), cfg); err != nil {
		log.Fatal("fail on read config", "error", err)
	}

	identity, err := relay.ParseIdentity(cfg.Identity)
	if err != nil {
		log.Fatal("fail on parse identity", "error", err)
	}

	if cfg.SyncSeconds == 0 {
		cfg.SyncSeconds = 300
	}

	graphClient := graph.NewClient(cfg.GraphEndpoint, identity.SigningKey)
	store := deal.NewStore(graphClient, gocache.New(gocache.NoExpiration, 0))
	sync.NewEventProcessor(
		cfg.SyncSeconds,
		store,
		chain.NewRegistryClient(cfg.Registry.Endpoint),
		ipfs.NewClient(cfg.StorageEndpoint),
	).Run(ctx.Context)
	return nil
}
