package main

import (
	"fmt"

	"redish/server/internal/oauth"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func clientsCommand() *cobra.Command {
	clients := &cobra.Command{
		Use:   "clients",
		Short: "Manage OAuth clients",
	}
	clients.AddCommand(clientsCreateCommand())
	return clients
}

func clientsCreateCommand() *cobra.Command {
	var name, redirect string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an OAuth client and print its credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errNoDatabase
			}
			log := logrus.StandardLogger()

			st, closeStore, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			svc := oauth.NewService(st, st, st, cfg.ClientOriginWeb, log)
			c, err := svc.RegisterClient(cmd.Context(), name, redirect)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "client_id:     %s\n", c.ID)
			fmt.Fprintf(out, "client_secret: %s\n", c.Secret)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name shown on the consent page")
	cmd.Flags().StringVar(&redirect, "redirect", "", "redirect URL (optional)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
