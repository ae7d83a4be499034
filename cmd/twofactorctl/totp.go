package main

import (
	"fmt"
	"os"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/app"
	"github.com/aussiebroadwan/twofactor/pkg/totpx"
	"github.com/spf13/cobra"
)

func newEngine(envFile string) (*totpx.Engine, error) {
	cfg, err := app.LoadConfig(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return totpx.New(totpx.Config{
		Issuer:    cfg.TOTPIssuer,
		Digits:    cfg.TOTPDigits,
		Period:    cfg.TOTPPeriod,
		Algorithm: cfg.TOTPAlgorithm,
		Skew:      totpx.Skew(cfg.TOTPSkew),
	})
}

func totpCommand(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "totp",
		Short: "Work with TOTP secrets",
	}

	cmd.AddCommand(totpSecretCommand(envFile))
	cmd.AddCommand(totpCodeCommand(envFile))
	cmd.AddCommand(totpURICommand(envFile))
	cmd.AddCommand(totpQRCommand(envFile))
	cmd.AddCommand(totpEnableCommand(envFile))
	cmd.AddCommand(totpDisableCommand(envFile))

	return cmd
}

func totpSecretCommand(envFile *string) *cobra.Command {
	var bits int

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Print a new random Base32 secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := newEngine(*envFile)
			if err != nil {
				return err
			}
			secret, err := engine.CreateSecret(bits, true)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}

	cmd.Flags().IntVar(&bits, "bits", totpx.DefaultSecretBits, "Entropy in bits")
	return cmd
}

func totpCodeCommand(envFile *string) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "code <secret>",
		Short: "Print the current code for a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(*envFile)
			if err != nil {
				return err
			}

			when := time.Now()
			if at != "" {
				if when, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			code, err := engine.GenerateCode(args[0], when)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "RFC 3339 time to generate the code for (default: now)")
	return cmd
}

func totpURICommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "uri <label> <secret>",
		Short: "Print the otpauth:// provisioning URI",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(*envFile)
			if err != nil {
				return err
			}
			uri, err := engine.ProvisioningURI(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), uri)
			return nil
		},
	}
}

func totpQRCommand(envFile *string) *cobra.Command {
	var size int
	var output string

	cmd := &cobra.Command{
		Use:   "qr <label> <secret>",
		Short: "Render the provisioning QR code",
		Long:  "Render the provisioning QR code as a PNG file, or print it as a data URI when --out is omitted.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(*envFile)
			if err != nil {
				return err
			}
			uri, err := engine.ProvisioningURI(args[0], args[1])
			if err != nil {
				return err
			}

			if output == "" {
				dataURI, err := totpx.QRCodeDataURI(uri, size)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dataURI)
				return nil
			}

			png, err := totpx.RenderQRCode(uri, size)
			if err != nil {
				return err
			}
			return os.WriteFile(output, png, 0o644)
		},
	}

	cmd.Flags().IntVar(&size, "size", totpx.DefaultQRSize, "Edge length in pixels")
	cmd.Flags().StringVarP(&output, "out", "o", "", "PNG file to write")
	return cmd
}

func totpEnableCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <username> <secret>",
		Short: "Set a user's secret directly, turning the second factor on",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := totpx.ValidateSecret(args[1]); err != nil {
				return err
			}

			db, _, err := openUsers(*envFile)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			user, err := db.Users().GetUserByUsername(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to find user %q: %w", args[0], err)
			}
			if err := db.Users().SetSecret(ctx, user.ID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "two-factor enabled for %s\n", user.Username)
			return nil
		},
	}
}

func totpDisableCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <username>",
		Short: "Remove a user's secret, turning the second factor off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openUsers(*envFile)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			user, err := db.Users().GetUserByUsername(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to find user %q: %w", args[0], err)
			}
			if err := db.Users().ClearSecret(ctx, user.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "two-factor disabled for %s\n", user.Username)
			return nil
		},
	}
}
