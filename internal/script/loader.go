// Package script loads handler definitions from interpreted Go source files.
// Each script is a self-contained Go package exporting a Handlers function
// that declares its hook bindings; the runtime evaluates the file with yaegi
// so handlers can change without rebuilding the binary.
package script

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"github.com/zeebo/blake3"

	"github.com/voxinfinitus/kaa/internal/irc"
	"github.com/voxinfinitus/kaa/internal/registry"
)

const entryFuncName = "Handlers"

// Handler is one binding declared by a script.
type Handler struct {
	Kind    registry.Kind
	Hook    string
	Fn      registry.HandlerFunc
	Options registry.Options
}

// File is the result of interpreting one script: its bindings plus a content
// fingerprint used to skip no-op reloads.
type File struct {
	Path        string
	Fingerprint string
	Handlers    []Handler
}

// Fingerprint computes the BLAKE3 hash of a file's contents.
func Fingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("script: read %s: %w", path, err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// LoadDir interprets every handler script under dir, one level deep: each
// subdirectory holds one script package. Results are ordered by path.
func LoadDir(dir string) ([]*File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("script: read %s: %w", dir, err)
	}

	var files []*File
	for _, entry := range entries {
		sub := filepath.Join(dir, entry.Name())
		if !entry.IsDir() {
			if isScript(entry.Name()) {
				f, err := LoadFile(sub)
				if err != nil {
					return nil, err
				}
				files = append(files, f)
			}
			continue
		}
		err := filepath.WalkDir(sub, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !isScript(d.Name()) {
				return err
			}
			f, err := LoadFile(path)
			if err != nil {
				return err
			}
			files = append(files, f)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func isScript(name string) bool {
	return filepath.Ext(name) == ".go" && !strings.HasSuffix(name, "_test.go")
}

// LoadFile interprets a single script and extracts its bindings.
func LoadFile(path string) (*File, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("script: %s is empty", path)
	}
	sum := blake3.Sum256(code)

	pkg := packageName(string(code))
	if pkg == "" {
		return nil, fmt.Errorf("script: %s has no package clause", path)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("script: %s: %w", path, err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("script: interpret %s: %w", path, err)
	}

	entry := entryFuncName
	if pkg != "main" {
		entry = pkg + "." + entryFuncName
	}
	fnValue, err := i.Eval(entry)
	if err != nil {
		return nil, fmt.Errorf("script: %s must define %s() []map[string]any: %w", path, entryFuncName, err)
	}

	raw, err := invokeEntry(fnValue)
	if err != nil {
		return nil, fmt.Errorf("script: %s: %w", path, err)
	}

	handlers := make([]Handler, 0, len(raw))
	for idx, def := range raw {
		h, err := parseDefinition(def)
		if err != nil {
			return nil, fmt.Errorf("script: %s handler[%d]: %w", path, idx, err)
		}
		handlers = append(handlers, h)
	}
	if len(handlers) == 0 {
		return nil, fmt.Errorf("script: %s declares no handlers", path)
	}

	return &File{
		Path:        path,
		Fingerprint: hex.EncodeToString(sum[:]),
		Handlers:    handlers,
	}, nil
}

// packageName extracts the package clause without a full parse. Scripts are
// plain Go files, so the clause is the first non-comment line.
func packageName(code string) string {
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "package "); ok {
			name, _, _ := strings.Cut(rest, "//")
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func invokeEntry(value reflect.Value) ([]map[string]any, error) {
	if !value.IsValid() || value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", entryFuncName)
	}
	results := value.Call(nil)
	if len(results) != 1 {
		return nil, fmt.Errorf("%s must return []map[string]any", entryFuncName)
	}

	out, ok := results[0].Interface().([]map[string]any)
	if ok {
		return out, nil
	}

	val := results[0]
	if val.Kind() == reflect.Interface {
		val = val.Elem()
	}
	if val.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", entryFuncName)
	}
	out = make([]map[string]any, val.Len())
	for i := 0; i < val.Len(); i++ {
		m, ok := val.Index(i).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not map[string]any", entryFuncName, i)
		}
		out[i] = m
	}
	return out, nil
}

func parseDefinition(def map[string]any) (Handler, error) {
	hook, _ := def["hook"].(string)
	if hook == "" {
		return Handler{}, fmt.Errorf("missing hook")
	}

	kind := registry.KindCommand
	switch k, _ := def["kind"].(string); k {
	case "", "command":
	case "event":
		kind = registry.KindEvent
	default:
		return Handler{}, fmt.Errorf("hook %q: unknown kind %q", hook, k)
	}

	fn, err := wrapFunc(def["func"])
	if err != nil {
		return Handler{}, fmt.Errorf("hook %q: %w", hook, err)
	}

	opts := registry.Options{}
	if raw, ok := def["options"].(map[string]any); ok {
		for k, v := range raw {
			opts[k] = v
		}
	}

	return Handler{Kind: kind, Hook: hook, Fn: fn, Options: opts}, nil
}

// scriptFunc is the shape scripts declare: a context map and an options map
// in, reply text out.
type scriptFunc = func(map[string]any, map[string]any) (string, error)

// wrapFunc adapts an interpreted function into a registry.HandlerFunc.
func wrapFunc(raw any) (registry.HandlerFunc, error) {
	if raw == nil {
		return nil, fmt.Errorf("missing func")
	}

	if direct, ok := raw.(scriptFunc); ok {
		return func(ctx irc.Context, opts registry.Options) (string, error) {
			return direct(ctx.Map(), map[string]any(opts))
		}, nil
	}

	// Interpreted values do not always assert to the concrete func type;
	// fall back to a reflective call with the same shape.
	val := reflect.ValueOf(raw)
	if val.Kind() != reflect.Func {
		return nil, fmt.Errorf("func is %T, not a function", raw)
	}
	t := val.Type()
	if t.NumIn() != 2 || t.NumOut() != 2 {
		return nil, fmt.Errorf("func must be func(map[string]any, map[string]any) (string, error)")
	}

	return func(ctx irc.Context, opts registry.Options) (string, error) {
		results := val.Call([]reflect.Value{
			reflect.ValueOf(ctx.Map()),
			reflect.ValueOf(map[string]any(opts)),
		})
		text, _ := results[0].Interface().(string)
		if e := results[1].Interface(); e != nil {
			if err, ok := e.(error); ok {
				return text, err
			}
			return text, fmt.Errorf("%v", e)
		}
		return text, nil
	}, nil
}
