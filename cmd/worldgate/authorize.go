package main

import (
	"fmt"

	"github.com/pawaret/worldgate/pkg/login"
	"github.com/spf13/cobra"
)

var authorizeState string

// authorizeCmd prints the provider URL a browser would be sent to. Handy
// for checking the client id and redirect URI registration.
var authorizeCmd = &cobra.Command{
	Use:   "authorize-url",
	Short: "Print the World ID authorization URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		svc := login.NewService(nil, login.Options{
			ClientID:           cfg.ClientID,
			AuthorizeURL:       cfg.Endpoints.AuthorizeURL,
			DefaultRedirectURI: cfg.RedirectURI(),
		})
		authURL, err := svc.AuthorizationURL("", authorizeState)
		if err != nil {
			return err
		}
		fmt.Println(authURL)
		return nil
	},
}

func init() {
	authorizeCmd.Flags().StringVar(&authorizeState, "state", "", "state value to include")
	rootCmd.AddCommand(authorizeCmd)
}
