// Package taskbuild translates a NormalizedBuild into a set of taskmgr
// tasks: one compile task per CppLibrary/CppBinary, a compile+run pair per
// CppTest, and one run task per GenRule/SystemLib. Each task's RunFunc
// performs that rule kind's build action (compile+link, run a gen rule,
// probe a system lib, or run a built test binary against its golden
// output) using internal/hashcheck to skip up-to-date work (a system-lib
// probe has no hash check and reruns on every build) and
// internal/progressui to report status. Grounded on build_engine.cpp's
// Builder/RunCppRule/RunGenRule/RunTest/RunSystemLib.
package taskbuild

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/bec-ca/mellow/internal/buildconfig"
	"github.com/bec-ca/mellow/internal/diffcheck"
	"github.com/bec-ca/mellow/internal/hashcheck"
	"github.com/bec-ca/mellow/internal/manifest"
	"github.com/bec-ca/mellow/internal/mellowerr"
	"github.com/bec-ca/mellow/internal/normalize"
	"github.com/bec-ca/mellow/internal/progressui"
	"github.com/bec-ca/mellow/internal/subprocess"
	"github.com/bec-ca/mellow/internal/syslib"
)

// compileTimeout bounds a compile/link subprocess; runTimeout bounds a
// gen-rule run, a test run, and a system-lib probe. Spec.md §5: "compile
// 5 min, gen-rule/test 1 min".
const (
	compileTimeout = 5 * time.Minute
	runTimeout     = 1 * time.Minute
)

// Options configures how a NormalizedBuild is compiled.
type Options struct {
	SrcRootDir   string // repo root, absolute
	BuildDir     string // absolute output directory for objects/binaries/hash cache
	Profile      *manifest.Profile
	BuildConfig  buildconfig.CppConfig
	ForceBuild   bool
	ForceTest    bool
	UpdateGolden bool
}

// Builder wires one NormalizedBuild's rules into taskmgr tasks.
type Builder struct {
	opts     Options
	logger   hclog.Logger
	runner   *subprocess.Runner
	progress *progressui.UI
	build    *normalize.NormalizedBuild
	byName   map[string]*normalize.NormalizedRule
}

// New creates a Builder for one normalized build.
func New(logger hclog.Logger, runner *subprocess.Runner, progress *progressui.UI, build *normalize.NormalizedBuild, opts Options) *Builder {
	return &Builder{
		opts:     opts,
		logger:   logger,
		runner:   runner,
		progress: progress,
		build:    build,
		byName:   build.ByName(),
	}
}

// Task is everything taskmgr needs to run one task node: its name (for
// graph wiring), the names of tasks it depends on, the filesystem paths it
// produces (so taskmgr can catch two tasks claiming the same output), and a
// Run function performing the task's action.
type Task struct {
	Name    string
	Deps    []string
	Outputs []string
	Run     func(ctx context.Context) (cached bool, err error)
}

// compileTaskName is the task-graph key a rule's compile step is registered
// under; every rule kind that produces a linkable artifact (library,
// binary, test) has exactly one. Spec.md §3's Task.key: "derived from a
// rule name with a .compile, .run, etc. suffix".
func compileTaskName(name string) string { return name + ".compile" }

// runTaskName is the task-graph key a rule's run step is registered under:
// a CppTest's run, a GenRule's invocation, or a SystemLib's probe.
func runTaskName(name string) string { return name + ".run" }

// Tasks returns one or two Tasks per rule in the normalized build (two for
// CppTest: a .compile task and a .run task gated independently by
// --force-test), ready to be fed to a taskmgr.Manager via AddTask. A
// CppTest whose os_filter excludes the current platform contributes no
// tasks at all, matching spec.md's "skipped (neither compiled nor run)".
func (b *Builder) Tasks() []Task {
	tasks := make([]Task, 0, len(b.build.Rules))
	for _, rule := range b.build.Rules {
		rule := rule
		switch rule.View.Kind() {
		case manifest.KindCppLibrary:
			tasks = append(tasks, b.compileTask(rule, true))
		case manifest.KindCppBinary:
			tasks = append(tasks, b.compileTask(rule, false))
		case manifest.KindCppTest:
			if !osFilterMatches(rule.View.OSFilter()) {
				continue
			}
			tasks = append(tasks, b.compileTask(rule, false))
			tasks = append(tasks, b.testRunTask(rule))
		case manifest.KindGenRule:
			tasks = append(tasks, b.genRuleTask(rule))
		case manifest.KindSystemLib:
			tasks = append(tasks, b.systemLibTask(rule))
		}
	}
	return tasks
}

func (b *Builder) depNames(rule *normalize.NormalizedRule) []string {
	deps := make([]string, len(rule.Deps))
	for i, d := range rule.Deps {
		if dep, ok := b.byName[d.String()]; ok && dep.View.Kind() == manifest.KindSystemLib {
			deps[i] = runTaskName(d.String())
			continue
		}
		deps[i] = compileTaskName(d.String())
	}
	return deps
}

func (b *Builder) compileTask(rule *normalize.NormalizedRule, isLibrary bool) Task {
	progress := b.progress.AddTask(rule.Name.String())
	return Task{
		Name:    compileTaskName(rule.Name.String()),
		Deps:    b.depNames(rule),
		Outputs: b.compileOutputs(rule, isLibrary),
		Run: func(ctx context.Context) (bool, error) {
			b.progress.TaskStarted(progress)
			var cached bool
			var err error
			if isLibrary {
				cached, err = b.buildCppLibrary(ctx, rule)
			} else {
				cached, err = b.buildCppBinary(ctx, rule)
			}
			b.progress.TaskDone(progress, cached)
			return cached, err
		},
	}
}

func (b *Builder) testRunTask(rule *normalize.NormalizedRule) Task {
	progress := b.progress.AddTask(rule.Name.String() + " (run)")
	return Task{
		Name: runTaskName(rule.Name.String()),
		Deps: []string{compileTaskName(rule.Name.String())},
		Run: func(ctx context.Context) (bool, error) {
			b.progress.TaskStarted(progress)
			cached, err := b.runCppTest(ctx, rule)
			b.progress.TaskDone(progress, cached)
			return cached, err
		},
	}
}

func (b *Builder) genRuleTask(rule *normalize.NormalizedRule) Task {
	progress := b.progress.AddTask(rule.Name.String())
	gen := rule.View.Raw().GenRule
	deps := append(b.depNames(rule), compileTaskName(rule.Name.Parent().Append(gen.Binary).String()))
	return Task{
		Name:    runTaskName(rule.Name.String()),
		Deps:    deps,
		Outputs: b.genRuleOutputs(rule),
		Run: func(ctx context.Context) (bool, error) {
			b.progress.TaskStarted(progress)
			cached, err := b.runGenRule(ctx, rule)
			b.progress.TaskDone(progress, cached)
			return cached, err
		},
	}
}

func (b *Builder) systemLibTask(rule *normalize.NormalizedRule) Task {
	progress := b.progress.AddTask(rule.Name.String())
	outName, _ := rule.View.SystemLibConfigName()
	outPath := filepath.Join(b.opts.BuildDir, rule.PackageDir, outName)
	return Task{
		Name:    runTaskName(rule.Name.String()),
		Outputs: []string{outPath},
		Run: func(ctx context.Context) (bool, error) {
			b.progress.TaskStarted(progress)
			cached, err := b.runSystemLib(ctx, rule)
			b.progress.TaskDone(progress, cached)
			return cached, err
		},
	}
}

// compiler returns the profile's cpp_compiler if set, else the build
// config's compiler. Spec.md §4.5.
func (b *Builder) compiler() string {
	if b.opts.Profile != nil && b.opts.Profile.CppCompiler != "" {
		return b.opts.Profile.CppCompiler
	}
	return b.opts.BuildConfig.Compiler
}

// includeDirs returns the -iquote directories for rule: the union of every
// transitive lib's root source directory and this rule's own, deduplicated
// and in that order. Grounded on build_engine.cpp:492-508's include_dirs
// computation; root_package_dir is NormalizedRule.RootSourceDir, a path
// relative to SrcRootDir ("" for in-repo packages, the external-packages
// root for fetched ones) that must be resolved against it before use.
func (b *Builder) includeDirs(rule *normalize.NormalizedRule) []string {
	seen := map[string]bool{}
	var dirs []string
	add := func(root string) {
		dir := filepath.Join(b.opts.SrcRootDir, root)
		if seen[dir] {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	for _, lib := range rule.TransitiveLibs {
		add(lib.RootSourceDir)
	}
	add(rule.RootSourceDir)
	return dirs
}

// flags assembles rule's compile (and, for a linkable rule, link) flags in
// the exact order spec.md §4.5 requires: profile cpp_flags, rule cpp_flags,
// build-config cpp_flags, -iquote per includeDirs, each transitive lib's
// own cpp_flags; then (for a linkable rule) profile ld_flags, build-config
// ld_flags, rule ld_flags, each transitive lib's own ld_flags.
// System-lib-config flags are deliberately excluded here: the caller
// splices those onto the very end of the command, after "-o <output>".
func (b *Builder) flags(rule *normalize.NormalizedRule, isLibrary bool) (cppFlags, ldFlags []string) {
	if b.opts.Profile != nil {
		cppFlags = append(cppFlags, b.opts.Profile.CppFlags...)
	}
	cppFlags = append(cppFlags, rule.View.CppFlags()...)
	cppFlags = append(cppFlags, b.opts.BuildConfig.CppFlags...)
	for _, dir := range b.includeDirs(rule) {
		cppFlags = append(cppFlags, "-iquote", dir)
	}
	for _, lib := range rule.TransitiveLibs {
		cppFlags = append(cppFlags, lib.View.CppFlags()...)
	}

	if isLibrary {
		return
	}
	if b.opts.Profile != nil {
		ldFlags = append(ldFlags, b.opts.Profile.LdFlags...)
	}
	ldFlags = append(ldFlags, b.opts.BuildConfig.LdFlags...)
	ldFlags = append(ldFlags, rule.View.LdFlags()...)
	for _, lib := range rule.TransitiveLibs {
		ldFlags = append(ldFlags, lib.View.LdFlags()...)
	}
	return
}

// syslibConfigPaths returns the on-disk system-lib-config file of every
// transitive SystemLib dependency of rule: inputs to rule's compile/link,
// per spec.md §4.5.
func (b *Builder) syslibConfigPaths(rule *normalize.NormalizedRule) []string {
	var paths []string
	for _, dep := range rule.TransitiveLibs {
		name, ok := dep.View.SystemLibConfigName()
		if !ok {
			continue
		}
		paths = append(paths, filepath.Join(b.opts.BuildDir, dep.PackageDir, name))
	}
	return paths
}

// syslibFlags reads back every transitive SystemLib dependency's probed
// config. The probed cpp_flags must reach the actual compile step (they can
// carry -D/-I flags the sources need), so the caller folds cppFlags into
// the flags passed to compileSources; ldLibs is spliced onto the very end
// of the link command line (after "-o <output>"), per spec.md §4.5.
// Grounded on build_engine.cpp's RunCppRule::create() post-"-o" loop over
// system lib configs.
func (b *Builder) syslibFlags(rule *normalize.NormalizedRule) (ldLibs, cppFlags []string, err error) {
	for _, path := range b.syslibConfigPaths(rule) {
		cfg, err := syslib.Read(path)
		if err != nil {
			return nil, nil, &mellowerr.IO{Op: "read", Path: path, Err: err}
		}
		ldLibs = append(ldLibs, cfg.LdFlags...)
		cppFlags = append(cppFlags, cfg.CppFlags...)
	}
	return ldLibs, cppFlags, nil
}

// objPath keeps the source's extension (util.cpp -> util.cpp.o), so a
// per-source object never lands on a library's own <name>.o, which ld -r
// refuses to take as both input and output.
func (b *Builder) objPath(source string) string {
	return filepath.Join(b.opts.BuildDir, source+".o")
}

func (b *Builder) hashCacheFile(rule *normalize.NormalizedRule, suffix string) string {
	return rule.Name.AppendNoSep("." + suffix + ".hash").ToFilesystem(b.opts.BuildDir)
}

// compileSources compiles each source file to an object file under
// BuildDir, returning the object paths in source order.
func (b *Builder) compileSources(ctx context.Context, sources, cppFlags []string) ([]string, error) {
	objs := make([]string, len(sources))
	for i, src := range sources {
		obj := b.objPath(src)
		if err := os.MkdirAll(filepath.Dir(obj), 0o755); err != nil {
			return nil, &mellowerr.IO{Op: "mkdir", Path: filepath.Dir(obj), Err: err}
		}
		args := append([]string{b.compiler(), "-c", src, "-o", obj, "-I", b.opts.SrcRootDir}, cppFlags...)
		if _, err := b.runner.Run(ctx, subprocess.Request{Command: args, Dir: b.opts.SrcRootDir, Timeout: compileTimeout}); err != nil {
			return nil, err
		}
		objs[i] = obj
	}
	return objs, nil
}

// transitiveLibInputs resolves every transitive lib's precompiled object
// (when it has sources) so the final link step includes them.
func (b *Builder) transitiveLibInputs(rule *normalize.NormalizedRule) []string {
	var objs []string
	for _, lib := range rule.TransitiveLibs {
		if obj, ok := lib.View.OutputCppObject(); ok {
			objs = append(objs, filepath.Join(b.opts.BuildDir, lib.PackageDir, obj))
		}
	}
	return objs
}

func (b *Builder) binaryOutputPath(rule *normalize.NormalizedRule) string {
	return rule.Name.ToFilesystem(b.opts.BuildDir)
}

// compileOutputs returns a compile task's declared output paths, for
// taskmgr's duplicate-producer check.
func (b *Builder) compileOutputs(rule *normalize.NormalizedRule, isLibrary bool) []string {
	if isLibrary {
		if obj, ok := rule.View.OutputCppObject(); ok {
			return []string{filepath.Join(b.opts.BuildDir, rule.PackageDir, obj)}
		}
		return nil
	}
	return []string{b.binaryOutputPath(rule)}
}

func (b *Builder) genRuleOutputs(rule *normalize.NormalizedRule) []string {
	gen := rule.View.Raw().GenRule
	outputDir := b.genRuleOutputDir(rule)
	outputs := make([]string, len(gen.Outputs))
	for i, o := range gen.Outputs {
		outputs[i] = filepath.Join(outputDir, o)
	}
	return outputs
}

func (b *Builder) genRuleOutputDir(rule *normalize.NormalizedRule) string {
	if rule.View.Raw().GenRule.OutputToSrc {
		return filepath.Join(b.opts.SrcRootDir, rule.PackageDir)
	}
	return filepath.Join(b.opts.BuildDir, rule.PackageDir)
}

// cppCompileInputs returns a compile task's inputs for hash-checking:
// sources, this rule's own headers, every transitive lib's headers, and
// (binary/test only) every transitive lib's compiled object plus the
// system-lib-config files of transitive SystemLib dependencies.
func (b *Builder) cppCompileInputs(rule *normalize.NormalizedRule, isLibrary bool) []string {
	inputs := append([]string{}, rule.Sources()...)
	inputs = append(inputs, rule.Headers()...)
	for _, lib := range rule.TransitiveLibs {
		inputs = append(inputs, joinAll(lib.PackageDir, lib.View.Headers())...)
	}
	if !isLibrary {
		inputs = append(inputs, b.transitiveLibInputs(rule)...)
	}
	inputs = append(inputs, b.syslibConfigPaths(rule)...)
	return inputs
}

func joinAll(dir string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(dir, n)
	}
	return out
}

func (b *Builder) buildCppBinary(ctx context.Context, rule *normalize.NormalizedRule) (bool, error) {
	cppFlags, ldFlags := b.flags(rule, false)
	sources := rule.Sources()
	outPath := b.binaryOutputPath(rule)

	ldLibs, sysCppFlags, err := b.syslibFlags(rule)
	if err != nil {
		return false, err
	}
	compileCppFlags := append(append([]string{}, cppFlags...), sysCppFlags...)

	inputs := b.cppCompileInputs(rule, false)
	outputs := []string{outPath}
	flagsKey := strings.Join(append(append(append(compileCppFlags, ldFlags...), ldLibs...), b.compiler()), " ")

	checker := hashcheck.New(b.logger, b.hashCacheFile(rule, "compile"), inputs, outputs, flagsKey)
	defer checker.WriteUpdatedHashes()

	if !b.opts.ForceBuild && checker.IsUpToDate() {
		return true, nil
	}

	objs, err := b.compileSources(ctx, sources, compileCppFlags)
	if err != nil {
		return false, err
	}
	objs = append(objs, b.transitiveLibInputs(rule)...)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return false, &mellowerr.IO{Op: "mkdir", Path: filepath.Dir(outPath), Err: err}
	}
	args := append(append([]string{b.compiler()}, objs...), "-o", outPath)
	args = append(args, ldFlags...)
	// Spec.md §4.5: system-lib-config flags splice onto the very end of the
	// command, ld_libs then cpp_flags for a binary/test.
	args = append(args, ldLibs...)
	args = append(args, sysCppFlags...)
	if _, err := b.runner.Run(ctx, subprocess.Request{Command: args, Dir: b.opts.SrcRootDir, Timeout: compileTimeout, OutputPrefix: outPath}); err != nil {
		return false, err
	}
	return false, nil
}

func (b *Builder) buildCppLibrary(ctx context.Context, rule *normalize.NormalizedRule) (bool, error) {
	cppFlags, _ := b.flags(rule, true)
	sources := rule.Sources()
	obj, hasObj := rule.View.OutputCppObject()

	_, sysCppFlags, err := b.syslibFlags(rule)
	if err != nil {
		return false, err
	}
	compileCppFlags := append(append([]string{}, cppFlags...), sysCppFlags...)

	inputs := b.cppCompileInputs(rule, true)
	var outputs []string
	if hasObj {
		outputs = []string{filepath.Join(b.opts.BuildDir, rule.PackageDir, obj)}
	}
	flagsKey := strings.Join(append(compileCppFlags, b.compiler()), " ")

	checker := hashcheck.New(b.logger, b.hashCacheFile(rule, "compile"), inputs, outputs, flagsKey)
	defer checker.WriteUpdatedHashes()

	if !b.opts.ForceBuild && checker.IsUpToDate() {
		return true, nil
	}

	if !hasObj {
		// Header-only library: nothing to compile, but still participates in
		// the dependency graph and hash cache for its headers.
		return false, nil
	}

	objs, err := b.compileSources(ctx, sources, compileCppFlags)
	if err != nil {
		return false, err
	}

	outPath := outputs[0]
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return false, &mellowerr.IO{Op: "mkdir", Path: filepath.Dir(outPath), Err: err}
	}
	// The combine step is a raw `ld -r`, not a compiler driver invocation, so
	// unlike the binary/test case there is no command left to splice the
	// probed cpp_flags onto; they already reached the sources above via
	// compileCppFlags, which is what makes them take effect for a library.
	args := append([]string{"ld", "-r", "-o", outPath}, objs...)
	if _, err := b.runner.Run(ctx, subprocess.Request{Command: args, Dir: b.opts.SrcRootDir, Timeout: compileTimeout, OutputPrefix: outPath}); err != nil {
		return false, err
	}
	return false, nil
}

func osFilterMatches(filter []manifest.OS) bool {
	if len(filter) == 0 {
		return true
	}
	var current manifest.OS
	switch runtime.GOOS {
	case "darwin":
		current = manifest.OSMacOS
	default:
		current = manifest.OSLinux
	}
	for _, os := range filter {
		if os == current {
			return true
		}
	}
	return false
}

// runCppTest runs rule's already-compiled test binary and compares its
// stdout against the rule's golden output file. Kept as a task separate
// from the compile step (see testRunTask) so --force-test reruns only
// this, not a recompile+relink, when the binary itself is unchanged.
func (b *Builder) runCppTest(ctx context.Context, rule *normalize.NormalizedRule) (bool, error) {
	binPath := b.binaryOutputPath(rule)
	goldenName := rule.View.Raw().CppTest.Output
	goldenPath := filepath.Join(b.opts.SrcRootDir, rule.PackageDir, goldenName)

	inputs := []string{binPath, goldenPath}
	checker := hashcheck.New(b.logger, b.hashCacheFile(rule, "run"), inputs, nil, "")
	defer checker.WriteUpdatedHashes()

	if !b.opts.ForceBuild && !b.opts.ForceTest && checker.IsUpToDate() {
		return true, nil
	}

	runDir := filepath.Join(b.opts.BuildDir, rule.PackageDir, "run", rule.Name.Last())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return false, &mellowerr.IO{Op: "mkdir", Path: runDir, Err: err}
	}
	res, err := b.runner.Run(ctx, subprocess.Request{Command: []string{binPath}, Dir: runDir, Timeout: runTimeout, OutputPrefix: rule.Name.ToFilesystem(b.opts.BuildDir)})
	if err != nil {
		return false, err
	}

	expected, err := os.ReadFile(goldenPath)
	if err != nil {
		if b.opts.UpdateGolden {
			expected = []byte{}
		} else {
			return false, &mellowerr.IO{Op: "read", Path: goldenPath, Err: err}
		}
	}

	if diffcheck.Equal(string(expected), res.Stdout) {
		return false, nil
	}

	if b.opts.UpdateGolden {
		if err := os.WriteFile(goldenPath, []byte(res.Stdout), 0o644); err != nil {
			return false, &mellowerr.IO{Op: "write", Path: goldenPath, Err: err}
		}
		return false, nil
	}

	diff, _ := diffcheck.Diff(rule.Name.String(), string(expected), res.Stdout)
	return false, &mellowerr.TestDiff{Rule: rule.Name.String(), Diff: diff}
}

func (b *Builder) runGenRule(ctx context.Context, rule *normalize.NormalizedRule) (bool, error) {
	gen := rule.View.Raw().GenRule
	binaryRule, ok := b.byName[rule.Name.Parent().Append(gen.Binary).String()]
	if !ok {
		return false, &mellowerr.GraphError{Message: "gen_rule '" + rule.Name.String() + "' references unknown binary '" + gen.Binary + "'"}
	}
	binaryPath := b.binaryOutputPath(binaryRule)

	data := map[string]string{}
	for _, d := range rule.Data() {
		data[filepath.Base(d)] = filepath.Join(b.opts.SrcRootDir, d)
	}

	outputDir := b.genRuleOutputDir(rule)
	outputs := b.genRuleOutputs(rule)

	flagsKey := strings.Join(gen.Flags, " ")
	inputs := append([]string{binaryPath}, rule.Data()...)
	checker := hashcheck.New(b.logger, b.hashCacheFile(rule, "run"), inputs, outputs, flagsKey)
	defer checker.WriteUpdatedHashes()

	if !b.opts.ForceBuild && checker.IsUpToDate() {
		return true, nil
	}

	runDir := filepath.Join(b.opts.BuildDir, rule.PackageDir, "run", rule.Name.Last())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return false, &mellowerr.IO{Op: "mkdir", Path: runDir, Err: err}
	}

	args := append([]string{binaryPath}, gen.Flags...)
	if _, err := b.runner.Run(ctx, subprocess.Request{Command: args, Dir: runDir, Data: data, Timeout: runTimeout, OutputPrefix: rule.Name.ToFilesystem(b.opts.BuildDir)}); err != nil {
		return false, err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return false, &mellowerr.IO{Op: "mkdir", Path: outputDir, Err: err}
	}
	for _, o := range gen.Outputs {
		src := filepath.Join(runDir, o)
		dst := filepath.Join(outputDir, o)
		if err := copyIfDiffers(src, dst); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (b *Builder) runSystemLib(ctx context.Context, rule *normalize.NormalizedRule) (bool, error) {
	sys := rule.View.Raw().SystemLib
	probeCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	cfg, err := syslib.Probe(probeCtx, b.runner, sys.Command, sys.Flags, b.opts.SrcRootDir)
	if err != nil {
		return false, err
	}
	outName, _ := rule.View.SystemLibConfigName()
	outPath := filepath.Join(b.opts.BuildDir, rule.PackageDir, outName)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return false, &mellowerr.IO{Op: "mkdir", Path: filepath.Dir(outPath), Err: err}
	}
	if err := syslib.Write(outPath, cfg); err != nil {
		return false, &mellowerr.IO{Op: "write", Path: outPath, Err: err}
	}
	return false, nil
}

func copyIfDiffers(src, dst string) error {
	srcData, err := os.ReadFile(src)
	if err != nil {
		return &mellowerr.IO{Op: "read", Path: src, Err: err}
	}
	if dstData, err := os.ReadFile(dst); err == nil && string(dstData) == string(srcData) {
		return nil
	}
	if err := os.WriteFile(dst, srcData, 0o644); err != nil {
		return &mellowerr.IO{Op: "write", Path: dst, Err: err}
	}
	return nil
}
