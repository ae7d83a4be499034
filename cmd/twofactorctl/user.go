package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/app"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
	"github.com/spf13/cobra"
)

// openUsers loads configuration and opens the database the server uses.
func openUsers(envFile string) (store.Store, *service.UserService, error) {
	cfg, err := app.LoadConfig(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := app.OpenStore(cfg.DatabaseFile)
	if err != nil {
		return nil, nil, err
	}

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	return db, &service.UserService{Store: db, Hasher: cryptox.Hasher{Pepper: pepper}}, nil
}

func userCommand(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	cmd.AddCommand(userAddCommand(envFile))
	cmd.AddCommand(userListCommand(envFile))

	return cmd
}

func userAddCommand(envFile *string) *cobra.Command {
	var preferredName, password string

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user with the second factor off",
		Long:  "Create a user. When --password is omitted a random password is generated and printed once.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, users, err := openUsers(*envFile)
			if err != nil {
				return err
			}
			defer db.Close()

			user, generated, err := users.CreateUser(cmd.Context(), args[0], preferredName, password)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created user %s (%s)\n", user.Username, user.ID)
			if password == "" {
				fmt.Fprintf(out, "password: %s\n", generated)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&preferredName, "name", "", "Preferred display name")
	cmd.Flags().StringVar(&password, "password", "", "Password (generated when empty)")

	return cmd
}

func userListCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users and whether they have a second factor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := openUsers(*envFile)
			if err != nil {
				return err
			}
			defer db.Close()

			return listUsers(cmd.Context(), cmd, db)
		},
	}
}

func listUsers(ctx context.Context, cmd *cobra.Command, db store.Store) error {
	users, err := db.Users().ListUsers(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\t2FA")
	for _, u := range users {
		twoFactor := "off"
		if u.TwoFactorEnabled() {
			twoFactor = "on"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Username, u.PreferredName, twoFactor)
	}
	return tw.Flush()
}
