package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vladislav-moscow/Social/pkg/prompter"
	"github.com/vladislav-moscow/Social/pkg/service"
)

var (
	refreshConversations bool
	sendImage            string
	listenReadOnly       bool
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List your conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *service.ChatService) error {
			return svc.ListConversations(ctx, refreshConversations)
		})
	},
}

var openCmd = &cobra.Command{
	Use:   "open <friendId>",
	Short: "Open (or start) the conversation with a friend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *service.ChatService) error {
			return svc.Open(ctx, args[0])
		})
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Send a message to the open conversation",
	Args: func(cmd *cobra.Command, args []string) error {
		if sendImage != "" {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *service.ChatService) error {
			_, err := svc.Send(ctx, strings.Join(args, " "), sendImage)
			return err
		})
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Show live messages and who is online",
	Long: `Connect to the relay as the logged-in user and print presence changes
and messages for the open conversation. When stdin is a terminal every line
you type is sent. Press Ctrl+C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *service.ChatService) error {
			if listenReadOnly || !prompter.IsInteractive() {
				return svc.Listen(ctx, nil)
			}
			return svc.Listen(ctx, prompter.In)
		})
	},
}

func init() {
	conversationsCmd.Flags().BoolVar(&refreshConversations, "refresh", false, "Ignore the local cache")
	sendCmd.Flags().StringVar(&sendImage, "image", "", "Attach an image file")
	listenCmd.Flags().BoolVar(&listenReadOnly, "read-only", false, "Do not read messages from stdin")

	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(listenCmd)
}
