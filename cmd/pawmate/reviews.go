package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	pawmate "github.com/pawmate-app/pawmate-go"
	"github.com/spf13/cobra"
)

var (
	reviewsListJSON   bool
	reviewsSubmitText string
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Sitter reviews",
}

var reviewsListCmd = &cobra.Command{
	Use:   "list <sitter-id>",
	Short: "List reviews for a sitter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		reviews, err := client.Reviews.ListForSitter(ctx, args[0])
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if reviewsListJSON {
			b, _ := json.MarshalIndent(reviews, "", "  ")
			fmt.Println(string(b))
			return nil
		}

		if len(reviews) == 0 {
			fmt.Println("No reviews yet.")
			return nil
		}
		for _, r := range reviews {
			stars := ""
			for i := 0; i < r.Rating; i++ {
				stars += "*"
			}
			fmt.Printf("  %-5s %s", stars, r.ReviewerID)
			if r.Comment != "" {
				fmt.Printf(" - %s", r.Comment)
			}
			fmt.Println()
		}
		return nil
	},
}

var reviewsSubmitCmd = &cobra.Command{
	Use:   "submit <sitter-id> <rating>",
	Short: "Review a sitter (rating 1-5)",
	Long: "Submit a review for a sitter you have chatted with.\n" +
		"Only the participant who started the conversation may review the counterpart.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sitterID := args[0]
		rating, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("rating must be a number: %w", err)
		}
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		// Check eligibility locally before the insert so the common failure
		// mode gets a clear message instead of a server error.
		messages, err := client.Messages.ListWith(ctx, cfg.Auth.UserID, sitterID)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		ownership := pawmate.ResolveOwnership(messages, cfg.Auth.UserID)
		if !ownership.CanReview {
			return fmt.Errorf("only the conversation starter may review this sitter")
		}

		review, err := client.Reviews.Submit(ctx, sitterID, rating, reviewsSubmitText)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		fmt.Printf("Review submitted: %s (%d/5)\n", review.ID, review.Rating)
		return nil
	},
}

func init() {
	reviewsListCmd.Flags().BoolVar(&reviewsListJSON, "json", false, "Output raw JSON")
	reviewsSubmitCmd.Flags().StringVar(&reviewsSubmitText, "comment", "", "Review text")

	reviewsCmd.AddCommand(reviewsListCmd)
	reviewsCmd.AddCommand(reviewsSubmitCmd)
	rootCmd.AddCommand(reviewsCmd)
}
