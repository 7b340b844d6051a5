package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/stillsuit/internal/cli"
	"github.com/Veraticus/stillsuit/internal/common"
	"github.com/Veraticus/stillsuit/internal/config"
	"github.com/Veraticus/stillsuit/internal/sheets"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to remote services",
	}
	cmd.AddCommand(authGoogleCmd())
	return cmd
}

func authGoogleCmd() *cobra.Command {
	var (
		clientID     string
		clientSecret string
		tokenFile    string
		callbackAddr string
	)

	cmd := &cobra.Command{
		Use:   "google",
		Short: "Obtain a Google refresh token for Drive backups and Sheets reports",
		Long: `Run the OAuth2 consent flow in a browser and print the refresh token.

The token grants access to the Drive app data folder and to spreadsheets.
Store it as backup.drive.refresh_token; report exports reuse it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if clientID == "" {
				clientID = viper.GetString("backup.drive.client_id")
			}
			if clientSecret == "" {
				clientSecret = viper.GetString("backup.drive.client_secret")
			}
			if clientID == "" || clientSecret == "" {
				return common.NewUserError("an OAuth2 client is required: pass --client-id and --client-secret or set backup.drive.client_id", nil)
			}

			tokenPath, err := config.ExpandPath("--token-file", tokenFile)
			if err != nil {
				return common.NewUserError("invalid --token-file", err)
			}

			out := cmd.OutOrStdout()
			token, err := sheets.AuthenticateOAuth2Interactive(cmd.Context(), sheets.OAuth2Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				TokenFile:    tokenPath,
				CallbackAddr: callbackAddr,
				OpenURL: func(url string) {
					fmt.Fprintln(out, cli.FormatInfo("Open this URL to authorize stillsuit:"))
					fmt.Fprintln(out, url)
				},
			})
			if err != nil {
				return err
			}
			if token.RefreshToken == "" {
				return common.NewUserError("Google did not return a refresh token; revoke the app's access and retry", nil)
			}

			fmt.Fprintln(out, cli.FormatSuccess("Authorized"))
			fmt.Fprintf(out, "backup.drive.refresh_token: %s\n", token.RefreshToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client id (default: backup.drive.client_id)")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret (default: backup.drive.client_secret)")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Also save the full token as JSON here")
	cmd.Flags().StringVar(&callbackAddr, "listen", sheets.DefaultCallbackAddr, "Address for the OAuth2 callback server")
	return cmd
}
