package main

import (
	"fmt"
	"os"

	"github.com/IvanKem/clever-document-assistant-ru/internal/config"

	"github.com/spf13/cobra"
)

func execute() {
	rootCmd := &cobra.Command{
		Use:           "docassist",
		Short:         "Document assistant CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newPingCmd())
	rootCmd.AddCommand(newEventsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
