package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/pyr-sh/dag"
	"github.com/spf13/cobra"

	"github.com/bec-ca/mellow/internal/manifest"
	"github.com/bec-ca/mellow/internal/mellowerr"
	"github.com/bec-ca/mellow/internal/normalize"
	"github.com/bec-ca/mellow/internal/process"
	"github.com/bec-ca/mellow/internal/progressui"
	"github.com/bec-ca/mellow/internal/subprocess"
	"github.com/bec-ca/mellow/internal/taskbuild"
	"github.com/bec-ca/mellow/internal/taskmgr"
	"github.com/bec-ca/mellow/internal/ui"
)

type buildFlags struct {
	profile      string
	jobs         int
	forceBuild   bool
	forceTest    bool
	updateGolden bool
	targets      []string
}

func newBuildCmd(global *globalFlags) *cobra.Command {
	flags := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build [targets...]",
		Short: "Build (and test) every rule reachable from the given targets, or the whole tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.targets = args
			return runBuild(global, flags)
		},
	}
	cmd.Flags().StringVar(&flags.profile, "profile", "", "profile name to use (defaults to the build config's default_profile)")
	cmd.Flags().IntVar(&flags.jobs, "jobs", 0, "number of parallel workers (0 = number of CPUs)")
	cmd.Flags().BoolVar(&flags.forceBuild, "force", false, "rebuild every rule, ignoring the hash cache")
	cmd.Flags().BoolVar(&flags.forceTest, "force-test", false, "rerun every cpp_test, ignoring the hash cache")
	cmd.Flags().BoolVar(&flags.updateGolden, "update-golden", false, "overwrite cpp_test golden output files with actual output")
	return cmd
}

func runBuild(global *globalFlags, flags *buildFlags) error {
	repoRoot, cfg, logger, err := resolvedConfig(global)
	if err != nil {
		return err
	}

	normalizer := &normalize.Normalizer{
		ManifestName:       cfg.ManifestName,
		ExternalPackageDir: cfg.ExternalPackageDir,
	}
	build, err := normalizer.NormalizeBuild(repoRoot)
	if err != nil {
		return err
	}

	profileName := flags.profile
	if profileName == "" {
		profileName = cfg.DefaultProfile
	}
	var profile *manifest.Profile
	for i := range build.Profiles {
		if build.Profiles[i].Name == profileName {
			profile = &build.Profiles[i]
			break
		}
	}

	progress := progressui.New(ui.OutWriter(ui.GetColorModeFromEnv()), ui.IsTTY)

	procManager := process.NewManager(logger)
	runner := subprocess.NewManaged(logger, procManager)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		if _, ok := <-sigCh; ok {
			cancel()
			procManager.Close()
		}
	}()
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()

	jobs := flags.jobs
	if jobs <= 0 {
		jobs = cfg.Jobs
	}

	builder := taskbuild.New(logger, runner, progress, build, taskbuild.Options{
		SrcRootDir:   repoRoot,
		BuildDir:     cfg.BuildDir,
		Profile:      profile,
		BuildConfig:  cfg.Cpp,
		ForceBuild:   flags.forceBuild,
		ForceTest:    flags.forceTest,
		UpdateGolden: flags.updateGolden,
	})

	mgr := taskmgr.New(logger)
	wanted, err := reachableTasks(builder.Tasks(), flags.targets)
	if err != nil {
		return err
	}
	for _, t := range wanted {
		if err := mgr.AddTask(t.Name, t.Deps, t.Outputs, t.Run); err != nil {
			return err
		}
	}

	summary, err := mgr.Run(ctx, jobs)
	if err != nil {
		return err
	}
	progress.Finish()

	fmt.Fprintf(os.Stdout, "%d rules: %d ran, %d cached, %d skipped\n", summary.Total, summary.Ran, summary.Cached, summary.Skipped)

	if summary.Errors != nil {
		if merr, ok := summary.Errors.(*multierror.Error); ok {
			return &mellowerr.Internal{Message: merr.Error()}
		}
		return summary.Errors
	}
	return nil
}

// reachableTasks restricts tasks to the transitive dependency closure of
// targets (by exact rule name); an empty targets list means "everything".
// The closure is computed with a dag.AcyclicGraph rather than a hand-rolled
// walk, the same graph library and Connect/Descendents shape the teacher
// uses for its own package/task graphs (internal/context.Context,
// internal/run's scope resolution).
func reachableTasks(tasks []taskbuild.Task, targets []string) ([]taskbuild.Task, error) {
	if len(targets) == 0 {
		return tasks, nil
	}

	byName := make(map[string]taskbuild.Task, len(tasks))
	var graph dag.AcyclicGraph
	for _, t := range tasks {
		byName[t.Name] = t
		graph.Add(t.Name)
	}
	for _, t := range tasks {
		for _, dep := range t.Deps {
			graph.Connect(dag.BasicEdge(t.Name, dep))
		}
	}
	if cycles := graph.Cycles(); len(cycles) > 0 {
		return nil, &mellowerr.GraphError{Message: "dependency cycle detected among build targets"}
	}

	keep := map[string]bool{}
	for _, target := range targets {
		if _, ok := byName[target]; !ok {
			return nil, &mellowerr.GraphError{Message: "unknown build target '" + target + "'"}
		}
		keep[target] = true
		descendents, err := graph.Descendents(target)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving dependencies of target '%s'", target)
		}
		for _, v := range descendents.List() {
			keep[v.(string)] = true
		}
	}

	out := make([]taskbuild.Task, 0, len(keep))
	for _, t := range tasks {
		if keep[t.Name] {
			out = append(out, t)
		}
	}
	return out, nil
}
