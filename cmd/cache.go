package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nodestash/nodestash/internals/cache"
	"github.com/nodestash/nodestash/internals/commands"
	"github.com/nodestash/nodestash/internals/platform"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the package cache",
}

func init() {
	cacheCmd.AddCommand(commands.New(&cobra.Command{
		Use:   "path",
		Short: "Prints the cache location",
	}, &cachePathRunner{}).Command)

	cacheCmd.AddCommand(commands.New(&cobra.Command{
		Use:   "clear",
		Short: "Removes all cached packages",
	}, &cacheClearRunner{}).Command)

	rootCmd.AddCommand(cacheCmd)
}

func cacheRoot() (string, error) {
	if root := viper.GetString("cacheDir"); root != "" {
		return root, nil
	}
	return platform.DefaultCacheRoot()
}

type cachePathRunner struct{}

func (r *cachePathRunner) RunE(cmd *cobra.Command, args []string) error {
	root, err := cacheRoot()
	if err != nil {
		return err
	}
	fmt.Println(root)
	return nil
}

type cacheClearRunner struct{}

func (r *cacheClearRunner) RunE(cmd *cobra.Command, args []string) error {
	root, err := cacheRoot()
	if err != nil {
		return err
	}

	if err := cache.New(root).Clear(); err != nil {
		return err
	}
	logger.Info("Cache cleared")
	return nil
}
