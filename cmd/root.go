package cmd

import (
	"fmt"
	"os"

	"github.com/jwalton/gchalk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nodestash/nodestash/internals/cmdlog"
	"github.com/nodestash/nodestash/internals/commands"
)

// Version is the current nodestash version, overridden at build time
var Version = "0.1.0"

var logger *cmdlog.Logger = cmdlog.New()

var (
	cfgFile       string
	disableColors bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: Version,
	Use:     "nodestash",
	Short:   "Install packages through a shared local cache",
	Long:    "Resolves, fetches and caches your dependencies – fast on the second run",

	Example: `
  nodestash install
  nodestash install --production
  nodestash cache path`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&disableColors, "no-color", "", false, "disable color output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.nodestash.toml)")
	rootCmd.PersistentFlags().String("cache-dir", "", "package cache location (default is $HOME/.nodestash/cache-v1)")
	rootCmd.PersistentFlags().String("registry", "", "registry url to resolve packages against")
	rootCmd.PersistentFlags().Int("concurrency", 0, "max parallel fetch/publish operations")

	viper.BindPFlag("cacheDir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	viper.BindPFlag("registry", rootCmd.PersistentFlags().Lookup("registry"))
	viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if disableColors || os.Getenv("CI") != "" {
		gchalk.SetLevel(gchalk.LevelNone)
		commands.EmojiEnabled = false
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".nodestash"
		// (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".nodestash")
	}

	viper.SetEnvPrefix("nodestash")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		logger.Log("Using config file: " + viper.ConfigFileUsed())
	}
}
