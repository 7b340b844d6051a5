package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/stillsuit/internal/cli"
	"github.com/Veraticus/stillsuit/internal/common"
	"github.com/Veraticus/stillsuit/internal/secret"
)

func secretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the backup encryption secret in the OS keychain",
		Long: `The backup secret encrypts every remote backup. It never leaves this
machine; without it a backup cannot be restored.`,
	}
	cmd.AddCommand(setSecretCmd())
	cmd.AddCommand(clearSecretCmd())
	return cmd
}

func setSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set",
		Short: "Store the backup secret (read from stdin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.ErrOrStderr(), cli.FormatInfo("Backup secret: "))
			value, err := cli.NewLineReader(os.Stdin).ReadLine(cmd.Context())
			if err != nil {
				return common.NewUserError("no secret read", err)
			}
			if err := secret.NewStore().Save(value); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(cli.VaultIcon+" Backup secret stored in keychain"))
			return nil
		},
	}
}

func clearSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the backup secret from the keychain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := secret.NewStore().Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Backup secret removed"))
			return nil
		},
	}
}
