// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the convertease CLI.
// The serve subcommand runs the conversion proxy; convert submits files to
// a running proxy and writes the converted results to disk.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/convertease/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the convertease CLI.
var rootCmd = &cobra.Command{
	Use:   "convertease",
	Short: "Convert documents, images, video, and audio through a conversion proxy",
	Long: `convertease converts files between formats. A small proxy holds the
conversion API credential and relays files to the conversion service;
the CLI validates a batch locally, sends it to the proxy, and saves the
results.

Run "convertease serve" to start the proxy and "convertease convert" to
submit files to it. "convertease formats" lists the supported pairs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger.SetVerbose(verbose)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./convertease.yaml or ~/.config/convertease/convertease.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log requests and progress to stderr")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("convertease")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "convertease"))
		}
	}

	setDefaults(viper.GetViper())
	configureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "warning: could not read config file %s: %v\n", cfgFile, err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
