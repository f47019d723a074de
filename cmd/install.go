package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nodestash/nodestash/internals/commands"
	"github.com/nodestash/nodestash/internals/installer"
	"github.com/nodestash/nodestash/internals/manifest"
	"github.com/nodestash/nodestash/internals/registry"
)

func init() {
	runner := &installRunner{}

	cmd := commands.New(&cobra.Command{
		Use:     "install",
		Short:   "Installs the dependencies declared in package.json",
		Aliases: []string{"i", "isntall"},
		Args:    cobra.NoArgs,
	}, runner)

	cmd.Flags().BoolVar(&runner.production, "production", false, "skip devDependencies")
	cmd.Flags().BoolVar(&runner.keepModules, "keep-modules", false, "reuse an existing node_modules instead of moving it aside")
	cmd.Flags().StringVar(&runner.arch, "arch", "", "target arch tag (defaults to this machine)")
	cmd.Flags().StringVar(&runner.abi, "abi", "", "target ABI tag (defaults to this machine)")

	rootCmd.AddCommand(cmd.Command)
}

type installRunner struct {
	production  bool
	keepModules bool
	arch        string
	abi         string
}

func (r *installRunner) RunE(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	man, err := manifest.Load(dir)
	if err != nil {
		return &commands.CliError{
			Text: err.Error(),
			Suggestions: []string{
				"Run nodestash from a directory containing a " + manifest.Filename,
			},
		}
	}

	inst, err := installer.New(installer.Config{
		Dir:         dir,
		CacheRoot:   viper.GetString("cacheDir"),
		Concurrency: viper.GetInt("concurrency"),
		IncludeDev:  !r.production,
		KeepModules: r.keepModules,
		Arch:        r.arch,
		ABI:         r.abi,
	}, registry.New(viper.GetString("registry"), nil))
	if err != nil {
		return err
	}
	inst.SetReporter(logger)

	depCount := len(man.Dependencies)
	if !r.production {
		depCount += len(man.DevDependencies)
	}
	if depCount == 0 {
		logger.Info("Nothing to install")
		return nil
	}

	task := logger.NewTask(2)
	task.Step("🔎", fmt.Sprintf("Resolving %d dependencies", depCount))

	s := spinner.New(spinner.CharSets[9], 300*time.Millisecond)
	s.Prefix = " "
	s.Start()

	start := time.Now()
	result, err := inst.RunManifest(context.Background(), man)
	s.Stop()
	if err != nil {
		return err
	}

	task.Step("🚚", "Materializing packages")
	for name, module := range result.Modules {
		task.Log(fmt.Sprintf("%s@%s", name, module.Version))
	}

	logger.Info("")
	logger.Headline(fmt.Sprintf(
		"Installed %d packages in %s (%d from cache, %d fetched, %s on disk)",
		len(result.Modules),
		time.Since(start).Round(time.Millisecond),
		result.Stats.CacheHits,
		result.Stats.Fetches,
		humanize.Bytes(dirSize(inst.ModulesDir())),
	))
	return nil
}

// dirSize walks a directory and sums the file sizes. Only used for
// the summary line, so errors just end the walk early.
func dirSize(dir string) uint64 {
	var total uint64
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}
