package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	pawmate "github.com/pawmate-app/pawmate-go"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Direct messaging",
	Long:  "Chat with sitters and owners: open a live conversation, list messages, or send a one-off message.",
}

// ============================================================================
// chat open
// ============================================================================

var chatOpenCmd = &cobra.Command{
	Use:   "open <peer-id>",
	Short: "Open a live conversation",
	Long: "Open an interactive conversation with a user. Incoming messages are\n" +
		"printed as they arrive; type a line to send, /status to inspect the\n" +
		"delivery layer, /quit to leave.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		peerID := args[0]
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		session, err := client.NewChatSession(ctx, peerID, nil)
		cancel()
		if err != nil {
			return fmt.Errorf("cannot start conversation: %w", err)
		}

		// Print only messages we have not shown yet. Updates carry the full
		// list, so remember how far we rendered.
		printed := 0
		session.OnUpdate(func(messages []pawmate.Message, ownership pawmate.Ownership) {
			for ; printed < len(messages); printed++ {
				m := messages[printed]
				who := m.SenderID
				if m.SenderID == cfg.Auth.UserID {
					who = "you"
				}
				fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04:05"), who, m.Content)
			}
			if printed > len(messages) {
				printed = len(messages)
			}
		})
		session.OnSendFailed(func(tempID, text string, err error) {
			fmt.Printf("!! send failed (%v), your message was: %s\n", err, text)
		})

		openCtx, openCancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = session.Open(openCtx)
		openCancel()
		if err != nil {
			return fmt.Errorf("cannot load conversation: %w", err)
		}
		defer session.Close()

		if session.CanReview() {
			fmt.Println("-- you started this conversation and may review this sitter --")
		}
		fmt.Println("-- type a message and press enter, /status or /quit --")

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch line {
			case "":
				continue
			case "/quit", "/q":
				return nil
			case "/status":
				fmt.Printf("channel: %s, polling: %v\n", channelStateName(session.ChannelState()), session.PollingActive())
				continue
			}

			sendCtx, sendCancel := context.WithTimeout(context.Background(), 15*time.Second)
			_, err := session.Send(sendCtx, line)
			sendCancel()
			if err != nil && err == pawmate.ErrBlankMessage {
				continue
			}
			// Other failures were already reported via OnSendFailed.
		}
		return scanner.Err()
	},
}

// ============================================================================
// chat messages
// ============================================================================

var chatMessagesCmd = &cobra.Command{
	Use:   "messages <peer-id>",
	Short: "List the conversation with a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		messages, err := client.Messages.ListWith(ctx, cfg.Auth.UserID, args[0])
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if len(messages) == 0 {
			fmt.Println("No messages found.")
			return nil
		}
		for _, m := range messages {
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format(time.RFC3339), m.SenderID, m.Content)
		}

		ownership := pawmate.ResolveOwnership(messages, cfg.Auth.UserID)
		if ownership.CanReview {
			fmt.Println("\nYou started this conversation and may review the counterpart.")
		}
		return nil
	},
}

// ============================================================================
// chat send
// ============================================================================

var chatSendCmd = &cobra.Command{
	Use:   "send <peer-id> <message>",
	Short: "Send a single message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		peerID, text := args[0], args[1]
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		msg, err := client.Messages.Insert(ctx, cfg.Auth.UserID, peerID, text)
		if err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		fmt.Printf("Sent %s\n", msg.ID)
		return nil
	},
}

func channelStateName(state pawmate.ChannelState) string {
	switch state {
	case pawmate.StateConnecting:
		return "connecting"
	case pawmate.StateSubscribed:
		return "subscribed"
	default:
		return "degraded"
	}
}

func init() {
	chatCmd.AddCommand(chatOpenCmd)
	chatCmd.AddCommand(chatMessagesCmd)
	chatCmd.AddCommand(chatSendCmd)
	rootCmd.AddCommand(chatCmd)
}
