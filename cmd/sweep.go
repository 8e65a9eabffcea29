package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/golang-pay-settlement/config"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "执行一次超时关单",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Cfg
		if err := openStores(cfg); err != nil {
			return err
		}
		defer closeStores()

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.expiry.Sweep(context.Background())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}
