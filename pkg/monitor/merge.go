package monitor

import (
	"fmt"
	"sort"

	"github.com/trainloop/trainloop/pkg/hook"
)

// mergedStep is one engine step folded together from the caller's
// request and every hook's contribution.
type mergedStep struct {
	ops      []string
	bindings map[string]any
	options  *hook.RunOptions
}

// mergeRequests folds hook contributions into the caller's request.
//
// Fetches are merged as the union of the distinct op names across all
// requesters; each requester keeps its own fetch tree for partitioning
// the results back out. Bindings must not collide: two requesters
// binding the same input name in one step is an ErrBindingConflict.
// Options start from the caller's and each non-nil contribution overlays
// its set fields in hook registration order.
func mergeRequests(original *hook.RunRequest, contribs []*hook.RunRequest) (*mergedStep, error) {
	opSet := make(map[string]struct{})
	for _, op := range original.Fetches().Ops() {
		opSet[op] = struct{}{}
	}

	bindings := original.Bindings()
	if bindings == nil {
		bindings = make(map[string]any)
	}
	options := original.Options()

	for _, contrib := range contribs {
		if contrib == nil {
			continue
		}
		for _, op := range contrib.Fetches().Ops() {
			opSet[op] = struct{}{}
		}
		for name, value := range contrib.Bindings() {
			if _, exists := bindings[name]; exists {
				return nil, fmt.Errorf("input %q bound twice in one step: %w", name, ErrBindingConflict)
			}
			bindings[name] = value
		}
		options = overlayOptions(options, contrib.Options())
	}

	ops := make([]string, 0, len(opSet))
	for op := range opSet {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	if len(bindings) == 0 {
		bindings = nil
	}
	return &mergedStep{ops: ops, bindings: bindings, options: options}, nil
}

// overlayOptions applies the set fields of extra on top of base. Trace
// requests combine by logical OR; a later timeout wins only when set;
// tags merge with the later writer winning per key.
func overlayOptions(base, extra *hook.RunOptions) *hook.RunOptions {
	if extra == nil {
		return base
	}
	if base == nil {
		return extra.Clone()
	}
	merged := base.Clone()
	if extra.Timeout != 0 {
		merged.Timeout = extra.Timeout
	}
	merged.Trace = merged.Trace || extra.Trace
	if len(extra.Tags) > 0 {
		if merged.Tags == nil {
			merged.Tags = make(map[string]string, len(extra.Tags))
		}
		for k, v := range extra.Tags {
			merged.Tags[k] = v
		}
	}
	return merged
}

// buildValue shapes the flat engine outputs into a value tree mirroring
// the fetch tree. Ops the engine did not report come back as nil
// scalars; the engine is expected to have failed the step instead for
// genuinely unknown ops.
func buildValue(f hook.Fetch, outputs map[string]any) hook.Value {
	switch f.Kind() {
	case hook.FetchOp:
		return hook.ScalarValue(outputs[f.OpName()])
	case hook.FetchList:
		items := f.Items()
		values := make([]hook.Value, len(items))
		for i, item := range items {
			values[i] = buildValue(item, outputs)
		}
		return hook.ListValue(values...)
	case hook.FetchMap:
		entries := f.Entries()
		values := make(map[string]hook.Value, len(entries))
		for name, item := range entries {
			values[name] = buildValue(item, outputs)
		}
		return hook.MapValue(values)
	default:
		return hook.Value{}
	}
}
