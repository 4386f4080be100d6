package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pawmate "github.com/pawmate-app/pawmate-go"
	"github.com/spf13/cobra"
)

var (
	feedListLimit int
	feedListJSON  bool
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Community feed",
}

var feedListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recent posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		posts, err := client.Feed.ListPosts(ctx, feedListLimit)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if feedListJSON {
			b, _ := json.MarshalIndent(posts, "", "  ")
			fmt.Println(string(b))
			return nil
		}

		if len(posts) == 0 {
			fmt.Println("No posts yet.")
			return nil
		}
		for _, p := range posts {
			likes := ""
			if p.LikeCount > 0 {
				likes = fmt.Sprintf(" (%d likes)", p.LikeCount)
			}
			fmt.Printf("  %s [%s]%s\n    %s\n", p.ID, p.AuthorID, likes, p.Content)
		}
		return nil
	},
}

var feedPostCmd = &cobra.Command{
	Use:   "post <content>",
	Short: "Publish a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		post := &pawmate.Post{AuthorID: cfg.Auth.UserID, Content: args[0]}
		created, err := client.Feed.CreatePost(ctx, post)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Printf("Posted: %s\n", created.ID)
		return nil
	},
}

var feedCommentCmd = &cobra.Command{
	Use:   "comment <post-id> <content>",
	Short: "Comment on a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		comment := &pawmate.Comment{PostID: args[0], AuthorID: cfg.Auth.UserID, Content: args[1]}
		created, err := client.Feed.AddComment(ctx, comment)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Printf("Comment added: %s\n", created.ID)
		return nil
	},
}

var feedCommentsCmd = &cobra.Command{
	Use:   "comments <post-id>",
	Short: "List comments on a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		comments, err := client.Feed.ListComments(ctx, args[0])
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if len(comments) == 0 {
			fmt.Println("No comments.")
			return nil
		}
		for _, c := range comments {
			fmt.Printf("  [%s] %s: %s\n", c.CreatedAt.Format(time.RFC3339), c.AuthorID, c.Content)
		}
		return nil
	},
}

var feedLikeCmd = &cobra.Command{
	Use:   "like <post-id>",
	Short: "Like a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := client.Feed.Like(ctx, args[0], cfg.Auth.UserID); err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Println("Liked.")
		return nil
	},
}

var feedUnlikeCmd = &cobra.Command{
	Use:   "unlike <post-id>",
	Short: "Remove your like from a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := client.Feed.Unlike(ctx, args[0], cfg.Auth.UserID); err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Println("Unliked.")
		return nil
	},
}

func init() {
	feedListCmd.Flags().IntVarP(&feedListLimit, "limit", "n", 20, "Maximum number of posts to return")
	feedListCmd.Flags().BoolVar(&feedListJSON, "json", false, "Output raw JSON")

	feedCmd.AddCommand(feedListCmd)
	feedCmd.AddCommand(feedPostCmd)
	feedCmd.AddCommand(feedCommentCmd)
	feedCmd.AddCommand(feedCommentsCmd)
	feedCmd.AddCommand(feedLikeCmd)
	feedCmd.AddCommand(feedUnlikeCmd)
	rootCmd.AddCommand(feedCmd)
}
