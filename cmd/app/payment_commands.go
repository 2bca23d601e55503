package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/payment-reconciler/cmd/app/commands"
	"github.com/allisson/payment-reconciler/internal/app"
)

func getPaymentCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "reconcile",
			Usage: "Reconcile a provider payment id against its order",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "payment-id",
					Aliases:  []string{"p"},
					Required: true,
					Usage:    "Provider payment id or merchant order id",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := commands.LoadConfig(ctx)
				if err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				reconcileUseCase, err := container.ReconcileUseCase()
				if err != nil {
					return err
				}

				return commands.RunReconcile(
					ctx,
					reconcileUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("payment-id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "poll",
			Usage: "Check the payment status of an order",
			Flags: []cli.Flag{
				&cli.Int64Flag{
					Name:     "order-id",
					Aliases:  []string{"o"},
					Required: true,
					Usage:    "Order id",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := commands.LoadConfig(ctx)
				if err != nil {
					return err
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				pollingUseCase, err := container.PollingUseCase()
				if err != nil {
					return err
				}

				return commands.RunPoll(
					ctx,
					pollingUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.Int64("order-id"),
					cmd.String("format"),
				)
			},
		},
	}
}
