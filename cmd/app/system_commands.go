package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/payment-reconciler/cmd/app/commands"
	"github.com/allisson/payment-reconciler/internal/app"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server, the reconciliation workers and the outbox relay",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := commands.LoadConfig(ctx)
				if err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "process-outbox",
			Usage: "Publish pending outbox events",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "once",
					Value: false,
					Usage: "Process a single batch and exit",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := commands.LoadConfig(ctx)
				if err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(context.WithoutCancel(ctx)) }()

				relay, err := container.Relay()
				if err != nil {
					return err
				}

				return commands.RunProcessOutbox(
					ctx,
					relay,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Bool("once"),
				)
			},
		},
		{
			Name:  "encrypt-secret",
			Usage: "Encrypt a secret with a KMS key for use in the configuration",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "kms-key-uri",
					Aliases:  []string{"k"},
					Required: true,
					Usage:    "KMS key URI (base64key://, gcpkms://, awskms://, azurekeyvault://, hashivault://)",
				},
				&cli.StringFlag{
					Name:     "value",
					Aliases:  []string{"v"},
					Required: true,
					Usage:    "Plaintext value to encrypt",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunEncryptSecret(
					ctx,
					commands.DefaultIO().Writer,
					cmd.String("kms-key-uri"),
					cmd.String("value"),
				)
			},
		},
	}
}
