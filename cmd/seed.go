package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/otcdesk/internal/bootstrap"
	"github.com/nextlevelbuilder/otcdesk/internal/config"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the built-in system triggers into an empty trigger table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			stores, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			n, err := bootstrap.SeedTriggers(cmd.Context(), stores.Triggers)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Println("system triggers already present, nothing to do")
				return nil
			}
			fmt.Printf("seeded %d system triggers\n", n)
			return nil
		},
	}
}
