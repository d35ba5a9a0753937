package build

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-version"
	"github.com/umbracle/gosolc/svm"
)

// ErrVersionMismatch is returned when the solc binary is not the pinned version.
var ErrVersionMismatch = errors.New("solc version mismatch")

// hardhatFormat marks artifacts in the layout Hardhat writes.
const hardhatFormat = "hh-sol-artifact-1"

var solcVersionRegexp = regexp.MustCompile(`Version:\s*(\d+\.\d+\.\d+)`)

// CompileOptions configures a CompileTask. Relative paths are resolved
// against Root.
type CompileOptions struct {
	Root      string
	Solc      string // binary name or path; empty resolves Version through svm
	CacheDir  string // svm compiler cache, ~/.solc-svm when empty
	Version   string // required compiler version
	Sources   string
	Artifacts string
	Optimizer bool
	Runs      int
}

// runFunc executes a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// resolveFunc returns the path of the solc binary for a version.
type resolveFunc func(version string) (string, error)

// CompileTask compiles every .sol file under Sources and writes one
// Hardhat-style artifact per contract.
type CompileTask struct {
	opts    CompileOptions
	logger  *slog.Logger
	run     runFunc
	resolve resolveFunc
}

// NewCompileTask creates the compile step.
func NewCompileTask(opts CompileOptions, logger *slog.Logger) *CompileTask {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t := &CompileTask{opts: opts, logger: logger, run: execSolc}
	t.resolve = t.svmResolve
	return t
}

// svmResolve downloads the compiler into the svm cache on first use.
func (t *CompileTask) svmResolve(v string) (string, error) {
	opts := []svm.Option{svm.WithLogger(slog.NewLogLogger(t.logger.Handler(), slog.LevelInfo))}
	if t.opts.CacheDir != "" {
		opts = append(opts, svm.WithDir(t.opts.CacheDir))
	}
	m, err := svm.NewSolidityVersionManager(opts...)
	if err != nil {
		return "", err
	}
	return m.Resolve(v)
}

// solcPath returns the explicit binary when one is configured, otherwise the
// svm-managed compiler for want.
func (t *CompileTask) solcPath(want *version.Version) (string, error) {
	if t.opts.Solc != "" {
		return t.opts.Solc, nil
	}
	path, err := t.resolve(want.String())
	if err != nil {
		return "", fmt.Errorf("fetching solc %s: %w", want, err)
	}
	t.logger.Debug("solc resolved", slog.String("path", path))
	return path, nil
}

func (t *CompileTask) Name() string { return "compile" }

func (t *CompileTask) Run(ctx context.Context) error {
	want, err := version.NewVersion(t.opts.Version)
	if err != nil {
		return fmt.Errorf("invalid solidity version %q: %w", t.opts.Version, err)
	}
	solc, err := t.solcPath(want)
	if err != nil {
		return err
	}
	if err := t.checkVersion(ctx, solc, want); err != nil {
		return err
	}

	sourcesDir := resolve(t.opts.Root, t.opts.Sources)
	files, err := findSources(t.opts.Root, sourcesDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .sol files under %s", sourcesDir)
	}

	input, err := t.standardInput(files)
	if err != nil {
		return err
	}

	args := []string{"--standard-json", "--base-path", t.opts.Root, "--allow-paths", t.opts.Root}
	if nm := filepath.Join(t.opts.Root, "node_modules"); isDir(nm) {
		args = append(args, "--include-path", nm)
	}
	t.logger.Info("compiling", slog.Int("files", len(files)), slog.String("solc", want.String()))

	stdout, err := t.run(ctx, solc, args, input)
	if err != nil {
		return err
	}

	var out solcOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return fmt.Errorf("parsing solc output: %w", err)
	}

	var errs *multierror.Error
	for _, e := range out.Errors {
		msg := strings.TrimSpace(e.FormattedMessage)
		if msg == "" {
			msg = e.Message
		}
		if e.Severity == "error" {
			errs = multierror.Append(errs, errors.New(msg))
			continue
		}
		t.logger.Warn("solc", slog.String("severity", e.Severity), slog.String("msg", msg))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	written, err := t.writeArtifacts(out)
	if err != nil {
		return err
	}
	t.logger.Info("artifacts written", slog.Int("contracts", written), slog.String("dir", resolve(t.opts.Root, t.opts.Artifacts)))
	return nil
}

func (t *CompileTask) checkVersion(ctx context.Context, solc string, want *version.Version) error {
	stdout, err := t.run(ctx, solc, []string{"--version"}, nil)
	if err != nil {
		return err
	}
	m := solcVersionRegexp.FindSubmatch(stdout)
	if m == nil {
		return fmt.Errorf("could not read version from %s --version", solc)
	}
	got, err := version.NewVersion(string(m[1]))
	if err != nil {
		return err
	}
	if !got.Equal(want) {
		return fmt.Errorf("%w: %s is %s, want %s", ErrVersionMismatch, solc, got, want)
	}
	return nil
}

// --- standard JSON ---

type solcInput struct {
	Language string                `json:"language"`
	Sources  map[string]solcSource `json:"sources"`
	Settings solcSettings          `json:"settings"`
}

type solcSource struct {
	Content string `json:"content"`
}

type solcSettings struct {
	Optimizer struct {
		Enabled bool `json:"enabled"`
		Runs    int  `json:"runs"`
	} `json:"optimizer"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

type solcOutput struct {
	Errors    []solcError                        `json:"errors"`
	Contracts map[string]map[string]solcContract `json:"contracts"`
}

type solcError struct {
	Severity         string `json:"severity"`
	Type             string `json:"type"`
	Message          string `json:"message"`
	FormattedMessage string `json:"formattedMessage"`
}

type solcContract struct {
	ABI json.RawMessage `json:"abi"`
	EVM struct {
		Bytecode         solcBytecode `json:"bytecode"`
		DeployedBytecode solcBytecode `json:"deployedBytecode"`
	} `json:"evm"`
}

type solcBytecode struct {
	Object         string          `json:"object"`
	LinkReferences json.RawMessage `json:"linkReferences"`
}

type hardhatArtifact struct {
	Format                 string          `json:"_format"`
	ContractName           string          `json:"contractName"`
	SourceName             string          `json:"sourceName"`
	ABI                    json.RawMessage `json:"abi"`
	Bytecode               string          `json:"bytecode"`
	DeployedBytecode       string          `json:"deployedBytecode"`
	LinkReferences         json.RawMessage `json:"linkReferences"`
	DeployedLinkReferences json.RawMessage `json:"deployedLinkReferences"`
}

func (t *CompileTask) standardInput(files []string) ([]byte, error) {
	in := solcInput{
		Language: "Solidity",
		Sources:  make(map[string]solcSource, len(files)),
	}
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(t.opts.Root, filepath.FromSlash(name)))
		if err != nil {
			return nil, err
		}
		in.Sources[name] = solcSource{Content: string(data)}
	}
	in.Settings.Optimizer.Enabled = t.opts.Optimizer
	in.Settings.Optimizer.Runs = t.opts.Runs
	in.Settings.OutputSelection = map[string]map[string][]string{
		"*": {"*": {"abi", "evm.bytecode", "evm.deployedBytecode"}},
	}
	return json.Marshal(in)
}

func (t *CompileTask) writeArtifacts(out solcOutput) (int, error) {
	dir := resolve(t.opts.Root, t.opts.Artifacts)
	written := 0

	sources := make([]string, 0, len(out.Contracts))
	for s := range out.Contracts {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	for _, source := range sources {
		for name, c := range out.Contracts[source] {
			a := hardhatArtifact{
				Format:                 hardhatFormat,
				ContractName:           name,
				SourceName:             source,
				ABI:                    orEmpty(c.ABI, "[]"),
				Bytecode:               "0x" + c.EVM.Bytecode.Object,
				DeployedBytecode:       "0x" + c.EVM.DeployedBytecode.Object,
				LinkReferences:         orEmpty(c.EVM.Bytecode.LinkReferences, "{}"),
				DeployedLinkReferences: orEmpty(c.EVM.DeployedBytecode.LinkReferences, "{}"),
			}
			data, err := json.MarshalIndent(a, "", "  ")
			if err != nil {
				return written, err
			}
			path := filepath.Join(dir, filepath.FromSlash(source), name+".json")
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return written, err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

// --- helpers ---

func execSolc(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("solc not found: %w", err)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running %s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// findSources lists .sol files under dir as slash-separated paths relative to root.
func findSources(root, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sol") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading sources: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func orEmpty(raw json.RawMessage, empty string) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(empty)
	}
	return raw
}
