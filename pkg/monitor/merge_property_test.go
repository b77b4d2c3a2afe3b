package monitor

import (
	"context"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/trainloop/trainloop/pkg/hook"
)

// genFetchTree draws a fetch tree up to the given depth.
func genFetchTree(t *rapid.T, label string, depth int) hook.Fetch {
	opName := rapid.StringMatching(`[a-z]{1,6}`)
	if depth <= 0 {
		return hook.Op(opName.Draw(t, label+"/op"))
	}
	switch rapid.IntRange(0, 2).Draw(t, label+"/kind") {
	case 0:
		return hook.Op(opName.Draw(t, label+"/op"))
	case 1:
		n := rapid.IntRange(0, 3).Draw(t, label+"/len")
		items := make([]hook.Fetch, n)
		for i := range items {
			items[i] = genFetchTree(t, label+"/item", depth-1)
		}
		return hook.List(items...)
	default:
		n := rapid.IntRange(0, 3).Draw(t, label+"/size")
		entries := make(map[string]hook.Fetch, n)
		for i := 0; i < n; i++ {
			key := rapid.StringMatching(`[a-z]{1,6}`).Draw(t, label+"/key")
			entries[key] = genFetchTree(t, label+"/entry", depth-1)
		}
		return hook.Map(entries)
	}
}

// For any nesting of fetches a hook requests, the result handed to its
// AfterRun mirrors that exact shape through a real monitored step.
func TestResultShapeMirrorsFetchShape(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fetches := genFetchTree(t, "fetches", 3)

		h := &recordingHook{name: "h", contrib: hook.NewRequest(fetches)}
		s, err := NewSession(&stubEngine{}, h)
		require.NoError(t, err)

		_, err = s.Run(context.Background(), hook.NewRequest(hook.Op("train")))
		require.NoError(t, err)

		require.NotNil(t, h.lastSeen)
		if !h.lastSeen.Results().MirrorsShape(fetches) {
			t.Fatalf("result shape does not mirror fetch shape %v", fetches.Ops())
		}
	})
}

// Merged steps execute the sorted union of every requester's op names,
// regardless of duplication within or across requesters.
func TestMergedOpsAreSortedUnion(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genOps := gen.SliceOf(gen.RegexMatch(`[a-z]{1,5}`))

	properties.Property("union of op names", prop.ForAll(
		func(callerOps, hookOps []string) bool {
			callerFetch := opsToFetch(callerOps)
			hookFetch := opsToFetch(hookOps)

			merged, err := mergeRequests(
				hook.NewRequest(callerFetch),
				[]*hook.RunRequest{hook.NewRequest(hookFetch)},
			)
			if err != nil {
				return false
			}

			want := unionSorted(callerOps, hookOps)
			if len(merged.ops) != len(want) {
				return false
			}
			for i, op := range want {
				if merged.ops[i] != op {
					return false
				}
			}
			return true
		},
		genOps, genOps,
	))

	properties.TestingRun(t)
}

func opsToFetch(ops []string) hook.Fetch {
	items := make([]hook.Fetch, len(ops))
	for i, op := range ops {
		items[i] = hook.Op(op)
	}
	return hook.List(items...)
}

func unionSorted(a, b []string) []string {
	set := make(map[string]struct{})
	for _, op := range a {
		set[op] = struct{}{}
	}
	for _, op := range b {
		set[op] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for op := range set {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}
