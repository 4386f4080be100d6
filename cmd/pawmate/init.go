package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

var initCmd = &cobra.Command{
	Use:   "init <project-url> <api-key>",
	Short: "Configure the backend project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Project.URL = args[0]
		cfg.Project.APIKey = args[1]
		if err := saveConfig(cfg); err != nil {
			return err
		}
		fmt.Println("Project configured.")
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email> <password>",
	Short: "Sign in and save the session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, password := args[0], args[1]
		client := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		session, err := client.Auth.SignIn(ctx, email, password)
		if err != nil {
			return fmt.Errorf("sign in failed: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Auth.Token = session.AccessToken
		cfg.Auth.UserID = session.User.ID
		cfg.Auth.Email = session.User.Email
		if err := saveConfig(cfg); err != nil {
			return err
		}

		fmt.Printf("Signed in as %s (%s)\n", session.User.Email, session.User.ID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Drop the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Auth = ConfigAuth{}
		if err := saveConfig(cfg); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		user, err := client.Auth.CurrentUser(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		fmt.Printf("User ID: %s\n", user.ID)
		fmt.Printf("Email:   %s\n", user.Email)
		return nil
	},
}
