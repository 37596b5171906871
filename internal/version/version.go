// Package version derives a release version string from git, falling back
// to the Version field of a PKG-INFO file when there is no repository.
package version

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// DevSuffix is appended when the working tree has uncommitted changes.
const DevSuffix = ".dev1"

var (
	ErrNoVersion = errors.New("version: no Version line in PKG-INFO")

	pkgInfoVersion = regexp.MustCompile(`(?m)^Version: (.+)$`)
)

// Runner runs an external command in dir and returns its standard output.
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.Output()
}

type options struct {
	dir    string
	runner Runner
	logger *slog.Logger
}

type Option func(*options)

// WithDir sets the project directory. Defaults to the working directory.
func WithDir(dir string) Option { return func(o *options) { o.dir = dir } }

// WithRunner replaces the command runner, which otherwise uses os/exec.
func WithRunner(r Runner) Option { return func(o *options) { o.runner = r } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// Describe returns the version of the project in the configured directory.
//
// With a .git directory present the version comes from
// `git describe --tags --match [0-9]*`; a "1.2.0-3-gabc123" description
// becomes "1.2.0.post3", and DevSuffix is added when
// `git diff-index --name-only HEAD` lists any file. Without one the
// version is read from PKG-INFO.
func Describe(ctx context.Context, opts ...Option) (string, error) {
	o := options{
		dir:    ".",
		runner: execRunner{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, fn := range opts {
		fn(&o)
	}

	if info, err := os.Stat(filepath.Join(o.dir, ".git")); err == nil && info.IsDir() {
		return fromGit(ctx, o)
	}

	o.logger.Debug("no git repository, reading PKG-INFO", "dir", o.dir)
	return fromPkgInfo(o.dir)
}

func fromGit(ctx context.Context, o options) (string, error) {
	out, err := o.runner.Run(ctx, o.dir, "git", "describe", "--tags", "--match", "[0-9]*")
	if err != nil {
		return "", errors.Wrap(err, "unable to get version number from git tags")
	}
	version := FoldDescribe(strings.TrimSpace(string(out)))

	// refresh the index so a touched but unchanged file does not count as dirty
	if _, err := o.runner.Run(ctx, o.dir, "git", "status"); err != nil {
		o.logger.Debug("git status failed", "err", err)
	}

	out, err = o.runner.Run(ctx, o.dir, "git", "diff-index", "--name-only", "HEAD")
	if err != nil {
		return "", errors.Wrap(err, "unable to get git index status")
	}
	if strings.TrimSpace(string(out)) != "" {
		o.logger.Debug("working tree is dirty", "version", version)
		version += DevSuffix
	}

	return version, nil
}

// FoldDescribe turns git describe output "TAG-N-gSHA" into "TAG.postN".
// Output without a dash is returned unchanged.
func FoldDescribe(describe string) string {
	if !strings.Contains(describe, "-") {
		return describe
	}
	parts := strings.SplitN(describe, "-", 3)
	return parts[0] + ".post" + parts[1]
}

func fromPkgInfo(dir string) (string, error) {
	path := filepath.Join(dir, "PKG-INFO")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}

	m := pkgInfoVersion.FindSubmatch(data)
	if m == nil {
		return "", errors.WithStack(ErrNoVersion)
	}
	return strings.TrimSpace(string(m[1])), nil
}
