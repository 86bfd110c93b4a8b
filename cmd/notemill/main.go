// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the notemill CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the notemill CLI.
var rootCmd = &cobra.Command{
	Use:   "notemill",
	Short: "Convert AI chat exports into an Obsidian vault",
	Long: `notemill converts chat history exports into Obsidian-style markdown notes.
Drop an export under providers/<name>/<date>/ and notemill turns it into
linked notes with deduplicated attachments and original timestamps.

Supported providers: gemini (Safari webarchives of shared chats), chatgpt
(conversations.json message trees plus image files), and claude
(conversations, memories, and projects).`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./.notemill.yaml or ~/.notemill.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".notemill")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("NOTEMILL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// Settings resolve as flag > environment > config file > flag default. A
// flag set on the command line always wins; otherwise viper answers from the
// NOTEMILL_* environment or the config file before the default applies.

func stringSetting(cmd *cobra.Command, flag, key string) string {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetString(key)
	}
	v, _ := cmd.Flags().GetString(flag)
	return v
}

func durationSetting(cmd *cobra.Command, flag, key string) time.Duration {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	v, _ := cmd.Flags().GetDuration(flag)
	return v
}

func intSetting(cmd *cobra.Command, flag, key string) int {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetInt(key)
	}
	v, _ := cmd.Flags().GetInt(flag)
	return v
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
