package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/shandysiswandi/gosampling/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		application := app.New(configPath) // Initialize the application
		wait := application.Start()        // Start the application and wait for the termination signal
		<-wait                             // Wait for the application to receive a termination signal

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		application.Stop(ctx) // Stop the application gracefully

		return nil
	},
}
