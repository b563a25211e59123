package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vladislav-moscow/Social/pkg/service"
)

var loginCmd = &cobra.Command{
	Use:   "login <userId>",
	Short: "Act as the given user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *service.ChatService) error {
			return svc.Login(args[0])
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the current user and their cached data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *service.ChatService) error {
			return svc.Logout()
		})
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
