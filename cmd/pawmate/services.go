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
	// services search
	servicesSearchType    string
	servicesSearchArea    string
	servicesSearchByPrice bool
	servicesSearchJSON    bool

	// services publish
	servicesPublishType  string
	servicesPublishArea  string
	servicesPublishPrice float64
	servicesPublishDesc  string

	// bookings request
	bookingsRequestPet  string
	bookingsRequestNote string

	bookingsListSitter bool
	bookingsListJSON   bool
)

// ============================================================================
// services
// ============================================================================

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Browse and manage sitter services",
}

var servicesSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search published services",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		search := &pawmate.ServiceSearch{
			ServiceType:  servicesSearchType,
			Area:         servicesSearchArea,
			OrderByPrice: servicesSearchByPrice,
		}
		listings, err := client.Services.Search(ctx, search)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if servicesSearchJSON {
			b, _ := json.MarshalIndent(listings, "", "  ")
			fmt.Println(string(b))
			return nil
		}

		if len(listings) == 0 {
			fmt.Println("No services found.")
			return nil
		}
		for _, l := range listings {
			area := ""
			if l.Area != "" {
				area = " in " + l.Area
			}
			fmt.Printf("  %s: %s [%s]%s - %.2f/day\n", l.ID, l.Title, l.ServiceType, area, l.PricePerDay)
		}
		return nil
	},
}

var servicesPublishCmd = &cobra.Command{
	Use:   "publish <title>",
	Short: "Publish a service listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		listing := &pawmate.ServiceListing{
			SitterID:    cfg.Auth.UserID,
			Title:       args[0],
			ServiceType: servicesPublishType,
			Description: servicesPublishDesc,
			Area:        servicesPublishArea,
			PricePerDay: servicesPublishPrice,
		}
		created, err := client.Services.Publish(ctx, listing)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		fmt.Printf("Service published: %s (%s)\n", created.Title, created.ID)
		return nil
	},
}

var servicesUnpublishCmd = &cobra.Command{
	Use:   "unpublish <service-id>",
	Short: "Take a service listing offline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := client.Services.Unpublish(ctx, args[0]); err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Printf("Service %s unpublished.\n", args[0])
		return nil
	},
}

// ============================================================================
// bookings
// ============================================================================

var bookingsCmd = &cobra.Command{
	Use:   "bookings",
	Short: "Manage booking requests",
}

var bookingsRequestCmd = &cobra.Command{
	Use:   "request <service-id> <start-date> <end-date>",
	Short: "Request a booking (dates as YYYY-MM-DD)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		serviceID, start, end := args[0], args[1], args[2]
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		service, err := client.Services.Get(ctx, serviceID)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		booking := &pawmate.Booking{
			ServiceID: serviceID,
			OwnerID:   cfg.Auth.UserID,
			SitterID:  service.SitterID,
			PetID:     bookingsRequestPet,
			StartDate: start,
			EndDate:   end,
			Note:      bookingsRequestNote,
		}
		created, err := client.Bookings.Request(ctx, booking)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		fmt.Printf("Booking requested: %s (%s to %s)\n", created.ID, created.StartDate, created.EndDate)
		return nil
	},
}

var bookingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your bookings",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var bookings []pawmate.Booking
		var err error
		if bookingsListSitter {
			bookings, err = client.Bookings.ListForSitter(ctx, cfg.Auth.UserID)
		} else {
			bookings, err = client.Bookings.ListForOwner(ctx, cfg.Auth.UserID)
		}
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if bookingsListJSON {
			b, _ := json.MarshalIndent(bookings, "", "  ")
			fmt.Println(string(b))
			return nil
		}

		if len(bookings) == 0 {
			fmt.Println("No bookings found.")
			return nil
		}
		for _, b := range bookings {
			fmt.Printf("  %s: %s to %s [%s]\n", b.ID, b.StartDate, b.EndDate, b.Status)
		}
		return nil
	},
}

var bookingsStatusCmd = &cobra.Command{
	Use:   "status <booking-id> <accepted|declined|completed>",
	Short: "Update a booking's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getAuthedClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := client.Bookings.UpdateStatus(ctx, args[0], args[1]); err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Printf("Booking %s is now %s.\n", args[0], args[1])
		return nil
	},
}

func init() {
	servicesSearchCmd.Flags().StringVar(&servicesSearchType, "type", "", "Filter by service type (walking, sitting, boarding, grooming)")
	servicesSearchCmd.Flags().StringVar(&servicesSearchArea, "area", "", "Filter by area")
	servicesSearchCmd.Flags().BoolVar(&servicesSearchByPrice, "by-price", false, "Order by price ascending")
	servicesSearchCmd.Flags().BoolVar(&servicesSearchJSON, "json", false, "Output raw JSON")

	servicesPublishCmd.Flags().StringVar(&servicesPublishType, "type", "sitting", "Service type")
	servicesPublishCmd.Flags().StringVar(&servicesPublishArea, "area", "", "Service area")
	servicesPublishCmd.Flags().Float64Var(&servicesPublishPrice, "price", 0, "Price per day")
	servicesPublishCmd.Flags().StringVar(&servicesPublishDesc, "description", "", "Listing description")

	bookingsRequestCmd.Flags().StringVar(&bookingsRequestPet, "pet", "", "Pet ID the booking is for")
	bookingsRequestCmd.Flags().StringVar(&bookingsRequestNote, "note", "", "Note to the sitter")

	bookingsListCmd.Flags().BoolVar(&bookingsListSitter, "as-sitter", false, "List bookings where you are the sitter")
	bookingsListCmd.Flags().BoolVar(&bookingsListJSON, "json", false, "Output raw JSON")

	servicesCmd.AddCommand(servicesSearchCmd)
	servicesCmd.AddCommand(servicesPublishCmd)
	servicesCmd.AddCommand(servicesUnpublishCmd)
	rootCmd.AddCommand(servicesCmd)

	bookingsCmd.AddCommand(bookingsRequestCmd)
	bookingsCmd.AddCommand(bookingsListCmd)
	bookingsCmd.AddCommand(bookingsStatusCmd)
	rootCmd.AddCommand(bookingsCmd)
}
