package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	importRegexp  = regexp.MustCompile(`(?m)^[ \t]*import\s+(?:[^;"']*?\s+from\s+)?["']([^"']+)["'][^;]*;[ \t]*\r?\n?`)
	spdxRegexp    = regexp.MustCompile(`(?m)^[ \t]*//\s*SPDX-License-Identifier:\s*(\S+)[^\n]*\n?`)
	pragmaRegexp  = regexp.MustCompile(`(?m)^[ \t]*pragma\s+solidity\s+([^;]+);[^\n]*\n?`)
	pragmaOthers  = regexp.MustCompile(`(?m)^[ \t]*pragma\s+(?:abicoder|experimental)\s+[^;]+;[^\n]*\n?`)
	blankLinesRun = regexp.MustCompile(`\n{3,}`)
)

// FlattenOptions configures a FlattenTask. Relative paths are resolved
// against Root; an empty Out writes to Stdout.
type FlattenOptions struct {
	Root         string
	Contract     string
	Out          string
	IncludePaths []string
	Stdout       io.Writer
}

// FlattenTask inlines a contract and its imports into one source file.
type FlattenTask struct {
	opts   FlattenOptions
	logger *slog.Logger
}

// NewFlattenTask creates the flatten step. node_modules under Root is
// always searched for package imports.
func NewFlattenTask(opts FlattenOptions, logger *slog.Logger) *FlattenTask {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	opts.IncludePaths = append(append([]string(nil), opts.IncludePaths...), "node_modules")
	return &FlattenTask{opts: opts, logger: logger}
}

func (t *FlattenTask) Name() string { return "flatten" }

func (t *FlattenTask) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	includes := make([]string, 0, len(t.opts.IncludePaths))
	for _, p := range t.opts.IncludePaths {
		includes = append(includes, resolve(t.opts.Root, p))
	}

	out, files, err := Flatten(t.opts.Root, t.opts.Contract, includes)
	if err != nil {
		return err
	}

	if t.opts.Out == "" || t.opts.Out == "-" {
		_, err := io.WriteString(t.opts.Stdout, out)
		return err
	}
	dst := resolve(t.opts.Root, t.opts.Out)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dst, []byte(out), 0o644); err != nil {
		return err
	}
	t.logger.Info("flattened", slog.Int("files", files), slog.String("out", dst))
	return nil
}

// sourceFile is a parsed Solidity file awaiting concatenation.
type sourceFile struct {
	name    string // slash path relative to root or include dir
	body    string
	license string
	pragma  string
	others  []string
}

type flattener struct {
	root     string
	includes []string
	visited  map[string]bool
	order    []*sourceFile
}

// Flatten returns entry with every imported file inlined once, dependencies
// first. Only one SPDX line and one solidity pragma are kept. It also returns
// the number of files inlined.
func Flatten(root, entry string, includePaths []string) (string, int, error) {
	f := &flattener{root: root, includes: includePaths, visited: make(map[string]bool)}
	abs := resolve(root, entry)
	if err := f.visit(abs, f.displayName(abs)); err != nil {
		return "", 0, err
	}
	return f.render(), len(f.order), nil
}

func (f *flattener) visit(abs, name string) error {
	if f.visited[abs] {
		return nil
	}
	f.visited[abs] = true

	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	src := strings.ReplaceAll(string(data), "\r\n", "\n")

	for _, m := range importRegexp.FindAllStringSubmatch(src, -1) {
		dep, depName, err := f.resolveImport(abs, name, m[1])
		if err != nil {
			return err
		}
		if err := f.visit(dep, depName); err != nil {
			return err
		}
	}

	sf := &sourceFile{name: name}
	if m := spdxRegexp.FindStringSubmatch(src); m != nil {
		sf.license = m[1]
	}
	if m := pragmaRegexp.FindStringSubmatch(src); m != nil {
		sf.pragma = strings.TrimSpace(m[1])
	}
	for _, m := range pragmaOthers.FindAllString(src, -1) {
		sf.others = append(sf.others, strings.TrimSpace(m))
	}

	body := importRegexp.ReplaceAllString(src, "")
	body = spdxRegexp.ReplaceAllString(body, "")
	body = pragmaRegexp.ReplaceAllString(body, "")
	body = pragmaOthers.ReplaceAllString(body, "")
	sf.body = strings.TrimSpace(body)

	f.order = append(f.order, sf)
	return nil
}

// resolveImport maps an import path to a file. Relative imports are resolved
// against the importing file, others against root then each include path.
func (f *flattener) resolveImport(fromAbs, fromName, imp string) (string, string, error) {
	if strings.HasPrefix(imp, "./") || strings.HasPrefix(imp, "../") {
		abs := filepath.Join(filepath.Dir(fromAbs), filepath.FromSlash(imp))
		name := path.Join(path.Dir(fromName), imp)
		if _, err := os.Stat(abs); err != nil {
			return "", "", fmt.Errorf("%s: import %q not found", fromName, imp)
		}
		return abs, name, nil
	}

	for _, dir := range append([]string{f.root}, f.includes...) {
		abs := filepath.Join(dir, filepath.FromSlash(imp))
		if _, err := os.Stat(abs); err == nil {
			return abs, imp, nil
		}
	}
	return "", "", fmt.Errorf("%s: import %q not found", fromName, imp)
}

func (f *flattener) displayName(abs string) string {
	if rel, err := filepath.Rel(f.root, abs); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(abs)
}

func (f *flattener) render() string {
	var (
		licenses []string
		seen     = map[string]bool{}
		pragma   string
		others   []string
		seenPrag = map[string]bool{}
	)
	for _, sf := range f.order {
		if sf.license != "" && !seen[sf.license] {
			seen[sf.license] = true
			licenses = append(licenses, sf.license)
		}
		// the entry file comes last and decides the compiler range
		if sf.pragma != "" {
			pragma = sf.pragma
		}
		for _, o := range sf.others {
			if !seenPrag[o] {
				seenPrag[o] = true
				others = append(others, o)
			}
		}
	}

	var buf bytes.Buffer
	if len(licenses) > 0 {
		fmt.Fprintf(&buf, "// SPDX-License-Identifier: %s\n", strings.Join(licenses, " AND "))
	}
	if pragma != "" {
		fmt.Fprintf(&buf, "pragma solidity %s;\n", pragma)
	}
	for _, o := range others {
		buf.WriteString(o + "\n")
	}
	buf.WriteString("\n// Sources flattened with idodeploy\n")

	for _, sf := range f.order {
		fmt.Fprintf(&buf, "\n// File %s\n", sf.name)
		if sf.license != "" {
			fmt.Fprintf(&buf, "// Original license: SPDX_License_Identifier: %s\n", sf.license)
		}
		if sf.body != "" {
			buf.WriteString("\n" + sf.body + "\n")
		}
	}
	return blankLinesRun.ReplaceAllString(buf.String(), "\n\n")
}
