package hooks

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/trainloop/trainloop/pkg/hook"
)

// Script adapts JavaScript callbacks into a run hook. The source may
// define any of the functions begin(), beforeRun(step), afterRun(values,
// step), and end(); missing functions are skipped.
//
// beforeRun may return null, an op name, a list of op names, or an
// object of the form {fetches: ..., bindings: {...}}. A truthy return
// from afterRun requests a stop.
type Script struct {
	hook.NopHook

	vm     *goja.Runtime
	begin  goja.Callable
	before goja.Callable
	after  goja.Callable
	end    goja.Callable

	iter int64
}

// NewScript compiles the script and binds its callbacks.
func NewScript(src string) (*Script, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	if _, err := vm.RunString(src); err != nil {
		return nil, fmt.Errorf("evaluate script: %w", err)
	}

	s := &Script{vm: vm}
	s.begin, _ = goja.AssertFunction(vm.Get("begin"))
	s.before, _ = goja.AssertFunction(vm.Get("beforeRun"))
	s.after, _ = goja.AssertFunction(vm.Get("afterRun"))
	s.end, _ = goja.AssertFunction(vm.Get("end"))

	if s.begin == nil && s.before == nil && s.after == nil && s.end == nil {
		return nil, fmt.Errorf("script defines no hook functions")
	}
	return s, nil
}

// Begin calls the script's begin() function.
func (s *Script) Begin() error {
	s.iter = 0
	if s.begin == nil {
		return nil
	}
	if _, err := s.begin(goja.Undefined()); err != nil {
		return fmt.Errorf("script begin: %w", err)
	}
	return nil
}

// BeforeRun calls beforeRun(step) and converts its return value into a
// run request.
func (s *Script) BeforeRun(rc *hook.RunContext) (*hook.RunRequest, error) {
	if s.before == nil {
		return nil, nil
	}

	ret, err := s.before(goja.Undefined(), s.vm.ToValue(s.iter))
	if err != nil {
		return nil, fmt.Errorf("script beforeRun: %w", err)
	}
	return s.convertRequest(ret)
}

// AfterRun calls afterRun(values, step). A truthy return requests a
// stop.
func (s *Script) AfterRun(rc *hook.RunContext, result *hook.RunResult) error {
	step := s.iter
	s.iter++
	if s.after == nil {
		return nil
	}

	values := s.vm.ToValue(result.Results().Interface())
	ret, err := s.after(goja.Undefined(), values, s.vm.ToValue(step))
	if err != nil {
		return fmt.Errorf("script afterRun: %w", err)
	}

	if ret != nil && ret.ToBoolean() {
		rc.RequestStop()
	}
	return nil
}

// End calls the script's end() function.
func (s *Script) End(sess hook.Session) error {
	if s.end == nil {
		return nil
	}
	if _, err := s.end(goja.Undefined()); err != nil {
		return fmt.Errorf("script end: %w", err)
	}
	return nil
}

// convertRequest maps a beforeRun return value to a run request.
func (s *Script) convertRequest(v goja.Value) (*hook.RunRequest, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}

	exported := v.Export()
	switch raw := exported.(type) {
	case string:
		return hook.NewRequest(hook.Op(raw)), nil
	case []any:
		fetches, err := fetchFromList(raw)
		if err != nil {
			return nil, err
		}
		return hook.NewRequest(fetches), nil
	case map[string]any:
		return s.requestFromObject(raw)
	default:
		return nil, fmt.Errorf("%w: beforeRun returned %T", ErrBadScriptResult, exported)
	}
}

func (s *Script) requestFromObject(obj map[string]any) (*hook.RunRequest, error) {
	var fetches hook.Fetch
	if rawFetches, ok := obj["fetches"]; ok {
		f, err := fetchFromAny(rawFetches)
		if err != nil {
			return nil, err
		}
		fetches = f
	}

	var opts []hook.RequestOption
	if rawBindings, ok := obj["bindings"]; ok {
		bindings, ok := rawBindings.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: bindings must be an object", ErrBadScriptResult)
		}
		opts = append(opts, hook.WithBindings(bindings))
	}

	if fetches.IsZero() && len(opts) == 0 {
		return nil, nil
	}
	return hook.NewRequest(fetches, opts...), nil
}

func fetchFromAny(raw any) (hook.Fetch, error) {
	switch f := raw.(type) {
	case string:
		return hook.Op(f), nil
	case []any:
		return fetchFromList(f)
	case map[string]any:
		entries := make(map[string]hook.Fetch, len(f))
		for name, item := range f {
			sub, err := fetchFromAny(item)
			if err != nil {
				return hook.Fetch{}, err
			}
			entries[name] = sub
		}
		return hook.Map(entries), nil
	default:
		return hook.Fetch{}, fmt.Errorf("%w: fetches contain %T", ErrBadScriptResult, raw)
	}
}

func fetchFromList(raw []any) (hook.Fetch, error) {
	items := make([]hook.Fetch, 0, len(raw))
	for _, item := range raw {
		sub, err := fetchFromAny(item)
		if err != nil {
			return hook.Fetch{}, err
		}
		items = append(items, sub)
	}
	return hook.List(items...), nil
}
