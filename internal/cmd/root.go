package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vladislav-moscow/Social/pkg/client"
	"github.com/vladislav-moscow/Social/pkg/config"
	clierrors "github.com/vladislav-moscow/Social/pkg/errors"
	"github.com/vladislav-moscow/Social/pkg/logger"
	"github.com/vladislav-moscow/Social/pkg/service"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Social chat - conversations, live messages and your timeline",
	Long: `chat is a terminal client for the Social network. Open a conversation
with a friend, send messages that arrive live over the relay, and keep up
with the posts of the people you follow.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := config.Init(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
			os.Exit(1)
		}

		logger.Init(verbose)
		client.Init()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, clierrors.FormatError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/social/chat/config.toml)")

	rootCmd.AddCommand(versionCmd)
}

// withService opens the chat service for one command. The context ends on
// interrupt.
func withService(fn func(ctx context.Context, svc *service.ChatService) error) error {
	svc, err := service.NewDefaultChatService()
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("Closing local store failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, svc)
}
