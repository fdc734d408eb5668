// Command ccpm is a thin CLI front end over the core: it does no
// resolution or caching itself, only argument parsing and wiring a
// ccpm.Core before handing off to one subcommand.
//
// Grounded on the teacher's cmd/dep/main.go command-table dispatch
// (a small `command` interface, a flag.FlagSet per subcommand, a
// shared set of global flags), trimmed to the handful of operations
// this core actually exposes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/ccpm-project/ccpm"
	"github.com/ccpm-project/ccpm/internal/config"
	"github.com/ccpm-project/ccpm/internal/manifestreader"
	"github.com/ccpm-project/ccpm/internal/resolver"
	"github.com/ccpm-project/ccpm/internal/warmup"
)

type command interface {
	Name() string
	ShortHelp() string
	Register(*flag.FlagSet)
	Run(core *ccpm.Core, args []string) error
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	commands := []command{
		&resolveCommand{},
		&cacheStatsCommand{},
		&warmupCommand{},
	}

	if len(args) < 2 {
		usage(stderr, commands)
		return 1
	}

	for _, cmd := range commands {
		if cmd.Name() != args[1] {
			continue
		}

		fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
		fs.SetOutput(stderr)
		cfgPath := fs.String("config", "ccpm.toml", "path to ccpm.toml")
		manifestRoot := fs.String("manifests", ".", "root directory of local package manifests")
		cmd.Register(fs)
		if err := fs.Parse(args[2:]); err != nil {
			return 1
		}

		cfg := config.Default()
		if loaded, err := config.Load(*cfgPath); err == nil {
			cfg = loaded
		}

		core := ccpm.New(cfg, ccpm.Dependencies{
			Reader: manifestreader.DirManifestReader{Root: *manifestRoot},
			Mode:   resolver.Automatic,
		}, stdout)
		defer core.Shutdown(true)

		if err := cmd.Run(core, fs.Args()); err != nil {
			fmt.Fprintf(stderr, "ccpm: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(stderr, "ccpm: %s: no such command\n", args[1])
	usage(stderr, commands)
	return 1
}

func usage(stderr *os.File, commands []command) {
	fmt.Fprintln(stderr, "Usage: ccpm <command> [flags]")
	fmt.Fprintln(stderr)
	w := tabwriter.NewWriter(stderr, 0, 4, 2, ' ', 0)
	for _, cmd := range commands {
		fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.ShortHelp())
	}
	w.Flush()
}

type resolveCommand struct{}

func (resolveCommand) Name() string      { return "resolve" }
func (resolveCommand) ShortHelp() string { return "resolve a project's dependency graph" }
func (resolveCommand) Register(fs *flag.FlagSet) {}

func (resolveCommand) Run(core *ccpm.Core, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("resolve: expected a manifest path")
	}
	reader := core.Resolver.Reader
	ctx := context.Background()
	deps, err := reader.ReadManifest(ctx, filepath.Base(args[0]), "")
	if err != nil {
		return err
	}
	g, err := core.Resolver.ResolveProject(ctx, resolver.ProjectManifest{Dependencies: deps})
	if err != nil {
		return err
	}
	for _, name := range sortedNodeNames(g) {
		n := g.Nodes[name]
		fmt.Printf("%s %s (%s)\n", n.Name, n.Version, n.Status)
	}
	return nil
}

func sortedNodeNames(g *resolver.DependencyGraph) []string {
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

type cacheStatsCommand struct{}

func (cacheStatsCommand) Name() string      { return "cache-stats" }
func (cacheStatsCommand) ShortHelp() string { return "print per-tier cache statistics" }
func (cacheStatsCommand) Register(fs *flag.FlagSet) {}

func (cacheStatsCommand) Run(core *ccpm.Core, args []string) error {
	for tier, stats := range core.Cache.Stats() {
		fmt.Printf("%s: items=%d size=%d hit_rate=%.2f\n", tier, stats.TotalItems, stats.TotalSizeBytes, stats.HitRate)
	}
	return nil
}

type warmupCommand struct {
	strategy string
}

func (c *warmupCommand) Name() string      { return "warmup" }
func (c *warmupCommand) ShortHelp() string { return "run a registered warmup pass" }
func (c *warmupCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.strategy, "strategy", "immediate", "immediate|async|background|ondemand")
}

func (c *warmupCommand) Run(core *ccpm.Core, args []string) error {
	core.Warmup.Start(context.Background(), parseStrategy(c.strategy))
	current, total, pct := core.Warmup.Progress()
	fmt.Printf("warmup: %d/%d (%.1f%%)\n", current, total, pct)
	return nil
}

func parseStrategy(s string) warmup.Strategy {
	switch s {
	case "async":
		return warmup.Async
	case "background":
		return warmup.BackgroundStrategy
	case "ondemand":
		return warmup.OnDemand
	default:
		return warmup.Immediate
	}
}
