package sandbox

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grafana/sobek"

	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

//go:embed harness.js
var harnessJS string

// DOMBundle is the DOM implementation every script runtime loads first
const DOMBundle = "linkedom.js"

// BundleFile names the algorithm bundle for kind inside a bundle directory
func BundleFile(kind models.ExtractorKind) string {
	return kind.String() + ".js"
}

// ScriptRuntime runs a bundled JavaScript extraction algorithm in an embedded
// sobek VM, on top of a linkedom document.
type ScriptRuntime struct {
	kind    models.ExtractorKind
	sources []namedSource
	vm      *sobek.Runtime
}

type namedSource struct {
	name string
	code string
}

// NewScriptRuntime reads the bundles for kind from dir. A missing bundle is
// reported as utils.ErrAssetMissing.
func NewScriptRuntime(kind models.ExtractorKind, dir string) (*ScriptRuntime, error) {
	names := []string{DOMBundle, BundleFile(kind)}
	sources := make([]namedSource, 0, len(names)+1)
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", utils.ErrAssetMissing, path)
			}
			return nil, fmt.Errorf("read bundle %s: %w", path, err)
		}
		sources = append(sources, namedSource{name: name, code: string(data)})
	}
	sources = append(sources, namedSource{name: "harness.js", code: harnessJS})
	return &ScriptRuntime{kind: kind, sources: sources}, nil
}

// Load evaluates the bundles in a fresh VM. It succeeds only when the harness
// reports that it finished loading.
func (r *ScriptRuntime) Load(ctx context.Context) error {
	vm := sobek.New()
	loaded := false
	if err := vm.Set("__readerviewLoaded", func() { loaded = true }); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	for _, src := range r.sources {
		if _, err := vm.RunScript(src.name, src.code); err != nil {
			return fmt.Errorf("evaluate %s: %w", src.name, err)
		}
	}
	if !loaded {
		return fmt.Errorf("%s bundle did not signal load", r.kind)
	}
	r.vm = vm
	return nil
}

// Run extracts one page. Script exceptions surface as errors; an algorithm
// returning null yields a nil Result.
func (r *ScriptRuntime) Run(ctx context.Context, call Call) (Result, error) {
	if r.vm == nil {
		return nil, fmt.Errorf("runtime not loaded")
	}
	vm := r.vm

	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer func() {
		stop()
		vm.ClearInterrupt()
	}()

	rawURL := ""
	if call.URL != nil {
		rawURL = call.URL.String()
	}
	script := "__readerviewExtract(" + JSString(call.HTML) + ", " + JSString(rawURL) + ")"
	if _, err := vm.RunString(script); err != nil {
		var interrupted *sobek.InterruptedError
		if errors.As(err, &interrupted) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("script error: %w", err)
	}

	stateFn, ok := sobek.AssertFunction(vm.Get("__readerviewState"))
	if !ok {
		return nil, fmt.Errorf("harness state accessor missing")
	}
	v, err := stateFn(sobek.Undefined())
	if err != nil {
		return nil, fmt.Errorf("script error: %w", err)
	}
	state := v.ToObject(vm)
	if !state.Get("done").ToBoolean() {
		return nil, fmt.Errorf("%s extraction did not settle", r.kind)
	}
	if e := state.Get("error"); !isNullish(e) {
		return nil, fmt.Errorf("script error: %s", e.String())
	}
	res := state.Get("result")
	if isNullish(res) {
		return nil, nil
	}
	m, ok := res.Export().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", res.Export())
	}
	return Result(m), nil
}

// Close drops the VM
func (r *ScriptRuntime) Close() error {
	r.vm = nil
	return nil
}

func isNullish(v sobek.Value) bool {
	return v == nil || sobek.IsNull(v) || sobek.IsUndefined(v)
}
