package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/docketry/docketry/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the working layout and a starter config file",
	Long: `Create the inbox, extraction, store, and lock directories under the
configured root, and write a config.yaml with the default settings if
one does not already exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureLayout(cfg); err != nil {
			return eris.Wrap(err, "init: layout")
		}

		configPath := filepath.Join(".", "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Layout ready under %s (config.yaml already exists)\n", cfg.Root)
			return nil
		}

		v := viper.New()
		config.SetDefaults(v)
		var defaults config.Config
		if err := v.Unmarshal(&defaults); err != nil {
			return eris.Wrap(err, "init: build defaults")
		}

		data, err := yaml.Marshal(&defaults)
		if err != nil {
			return eris.Wrap(err, "init: marshal config")
		}
		if err := os.WriteFile(configPath, data, 0o644); err != nil {
			return eris.Wrapf(err, "init: write %s", configPath)
		}

		fmt.Printf("Layout ready under %s, wrote %s\n", cfg.Root, configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
