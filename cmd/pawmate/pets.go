package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	pawmate "github.com/pawmate-app/pawmate-go"
	"github.com/spf13/cobra"
)

var (
	petsListJSON bool

	// pets add
	petsAddSpecies string
	petsAddBreed   string
	petsAddAge     int
	petsAddNotes   string

	// pets photo
	petsPhotoMime string
)

var petsCmd = &cobra.Command{
	Use:   "pets",
	Short: "Manage pet profiles",
}

var petsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your pets",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		pets, err := client.Pets.List(ctx, cfg.Auth.UserID)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if petsListJSON {
			b, _ := json.MarshalIndent(pets, "", "  ")
			fmt.Println(string(b))
			return nil
		}

		if len(pets) == 0 {
			fmt.Println("No pets yet. Add one with 'pawmate pets add <name>'.")
			return nil
		}
		for _, p := range pets {
			extra := p.Species
			if p.Breed != "" {
				extra += ", " + p.Breed
			}
			if p.AgeYears > 0 {
				extra += fmt.Sprintf(", %dy", p.AgeYears)
			}
			fmt.Printf("  %s: %s (%s)\n", p.ID, p.Name, extra)
		}
		return nil
	},
}

var petsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a pet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		pet := &pawmate.Pet{
			OwnerID:  cfg.Auth.UserID,
			Name:     args[0],
			Species:  petsAddSpecies,
			Breed:    petsAddBreed,
			AgeYears: petsAddAge,
			Notes:    petsAddNotes,
		}
		created, err := client.Pets.Create(ctx, pet)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		fmt.Printf("Pet added: %s (%s)\n", created.Name, created.ID)
		return nil
	},
}

var petsRemoveCmd = &cobra.Command{
	Use:   "remove <pet-id>",
	Short: "Remove a pet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := client.Pets.Delete(ctx, args[0]); err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Printf("Pet %s removed.\n", args[0])
		return nil
	},
}

var petsPhotoCmd = &cobra.Command{
	Use:   "photo <pet-id> <path>",
	Short: "Upload a pet photo",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		petID, path := args[0], args[1]
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		objectPath := cfg.Auth.UserID + "/" + petID + filepath.Ext(path)
		url, err := client.Storage.Upload(ctx, "pet-photos", objectPath, data, petsPhotoMime)
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		if err := client.Pets.Update(ctx, petID, map[string]any{"photo_url": url}); err != nil {
			return fmt.Errorf("failed to link photo: %w", err)
		}

		fmt.Printf("Photo uploaded: %s\n", url)
		return nil
	},
}

func init() {
	petsListCmd.Flags().BoolVar(&petsListJSON, "json", false, "Output raw JSON")

	petsAddCmd.Flags().StringVar(&petsAddSpecies, "species", "dog", "Pet species")
	petsAddCmd.Flags().StringVar(&petsAddBreed, "breed", "", "Pet breed")
	petsAddCmd.Flags().IntVar(&petsAddAge, "age", 0, "Age in years")
	petsAddCmd.Flags().StringVar(&petsAddNotes, "notes", "", "Care notes for sitters")

	petsPhotoCmd.Flags().StringVar(&petsPhotoMime, "mime", "", "Override MIME type")

	petsCmd.AddCommand(petsListCmd)
	petsCmd.AddCommand(petsAddCmd)
	petsCmd.AddCommand(petsRemoveCmd)
	petsCmd.AddCommand(petsPhotoCmd)
	rootCmd.AddCommand(petsCmd)
}
