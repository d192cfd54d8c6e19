package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available capture devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine(cfg.Audio.Engine)
		if err != nil {
			return err
		}
		defer engine.Terminate()

		devices, err := engine.ListDevices(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}
		if len(devices) == 0 {
			fmt.Println("No capture devices found")
			return nil
		}

		for _, d := range devices {
			marker := " "
			if d.Default {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, d.Name)
		}
		return nil
	},
}
