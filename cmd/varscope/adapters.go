package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/varscope/internal/debug/adapters"
	"github.com/dshills/varscope/internal/launch"
)

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List the supported debug adapter kinds",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := adapters.NewRegistry()
		for _, kind := range registry.Kinds() {
			adapter, err := registry.Create(adapters.Config{Kind: kind})
			if err != nil {
				return err
			}
			fmt.Printf("%-8s %s\n", kind, adapter.Name())
		}
		return nil
	},
}

var configsCmd = &cobra.Command{
	Use:   "configs",
	Short: "List the configurations in the launch file",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := launch.Load(configPath)
		if err != nil {
			return err
		}
		if file == nil {
			return fmt.Errorf("launch file %s not found", configPath)
		}
		for _, spec := range file.Configurations {
			target := spec.Program
			if target == "" {
				target = spec.Module
			}
			fmt.Printf("%-16s %-8s %s\n", spec.Name, spec.Kind, target)
		}
		return nil
	},
}
