package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vladislav-moscow/Social/pkg/service"
)

var (
	refreshFeed bool
	postImage   string
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show your timeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *service.ChatService) error {
			return svc.Feed(ctx, refreshFeed)
		})
	},
}

var likeCmd = &cobra.Command{
	Use:   "like <postId>",
	Short: "Like or unlike a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *service.ChatService) error {
			_, err := svc.Like(ctx, args[0])
			return err
		})
	},
}

var followCmd = &cobra.Command{
	Use:   "follow <userId>",
	Short: "Follow a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *service.ChatService) error {
			return svc.Follow(ctx, args[0])
		})
	},
}

var unfollowCmd = &cobra.Command{
	Use:   "unfollow <userId>",
	Short: "Stop following a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *service.ChatService) error {
			return svc.Unfollow(ctx, args[0])
		})
	},
}

var postCmd = &cobra.Command{
	Use:   "post <text>",
	Short: "Publish a post",
	Args: func(cmd *cobra.Command, args []string) error {
		if postImage != "" {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *service.ChatService) error {
			_, err := svc.Post(ctx, strings.Join(args, " "), postImage)
			return err
		})
	},
}

func init() {
	feedCmd.Flags().BoolVar(&refreshFeed, "refresh", false, "Ignore the local copy")
	postCmd.Flags().StringVar(&postImage, "image", "", "Attach an image file")

	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(likeCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(unfollowCmd)
	rootCmd.AddCommand(postCmd)
}
