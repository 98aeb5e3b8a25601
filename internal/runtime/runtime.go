// Package runtime embeds a Risor VM that evaluates user-supplied fixture
// scripts. A script sees the test under analysis as globals and returns the
// list of fixture names the test depends on.
package runtime

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"github.com/sirupsen/logrus"
)

// Runtime loads and evaluates Risor scripts. It is safe for concurrent use;
// each evaluation runs in its own VM.
type Runtime struct {
	scriptsDir string
	fsys       fs.FS
	logger     logrus.FieldLogger

	mu      sync.Mutex
	scripts map[string]string
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger behind the scripts' log global.
func WithLogger(l logrus.FieldLogger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRuntime creates a Runtime that resolves relative script paths against
// scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	discard.SetLevel(logrus.WarnLevel)
	r := &Runtime{
		scriptsDir: scriptsDir,
		logger:     discard,
		scripts:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads (once) and executes a Risor script with the standard
// globals plus extraGlobals, returning the value of its last expression.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) (object.Object, error) {
	src, err := r.cachedScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) (object.Object, error) {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

// RunStrings runs a script and converts its result to a string list.
func (r *Runtime) RunStrings(ctx context.Context, scriptPath string, extraGlobals map[string]any) ([]string, error) {
	obj, err := r.RunScript(ctx, scriptPath, extraGlobals)
	if err != nil {
		return nil, err
	}
	out, err := Strings(obj)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", scriptPath, err)
	}
	return out, nil
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) (object.Object, error) {
	globals, err := r.buildGlobals(label, extraGlobals)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)

	var opts []risor.Option
	for _, name := range names {
		opts = append(opts, risor.WithGlobal(name, globals[name]))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(names); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return result, nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globalNames []string) importer.Importer {
	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

func (r *Runtime) cachedScript(path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if src, ok := r.scripts[path]; ok {
		return src, nil
	}
	src, err := r.LoadScript(path)
	if err != nil {
		return "", err
	}
	r.scripts[path] = src
	return src, nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// fs.FS paths are relative and slash separated.
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(label string, extra map[string]any) (map[string]any, error) {
	globals := map[string]any{
		"log": mustProxy(&logObject{logger: r.logger.WithField("script", label)}),
	}
	for k, v := range extra {
		obj, err := ToObject(v)
		if err != nil {
			return nil, fmt.Errorf("runtime: global %s: %w", k, err)
		}
		globals[k] = obj
	}
	return globals, nil
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	logger logrus.FieldLogger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
