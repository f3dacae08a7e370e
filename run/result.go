package run

import (
	"fmt"
	"sort"
)

// Result maps task names to the values their tasks returned. Map-valued
// results are flattened into the top level unless Options.NoFlatten is
// set, which makes one dispatch's Result directly reusable as the next
// dispatch's input.
type Result map[string]any

// fold merges transparent map inputs (in input order) and successful
// outcomes (in task input order) into one Result. Nil results are
// omitted unless KeepNil; a key written twice is a master failure.
func (rn *runState) fold(set *taskSet, outcomes []outcome) (Result, error) {
	res := make(Result)
	merge := func(key string, value any) error {
		if _, dup := res[key]; dup {
			return &MasterError{Err: fmt.Errorf("%w: %q", ErrKeyConflict, key)}
		}
		res[key] = value
		return nil
	}
	flatten := func(m map[string]any) error {
		for _, key := range sortedKeys(m) {
			if err := merge(key, m[key]); err != nil {
				return err
			}
		}
		return nil
	}

	for _, m := range set.maps {
		if err := flatten(m); err != nil {
			return nil, err
		}
	}

	byTask := make(map[*task]outcome, len(outcomes))
	for _, out := range outcomes {
		byTask[out.task] = out
	}
	for _, t := range set.tasks {
		out, ok := byTask[t]
		if !ok || out.err != nil {
			continue
		}
		var asMap map[string]any
		switch v := out.value.(type) {
		case nil:
			if !rn.opts.KeepNil {
				continue
			}
			if err := merge(t.name, nil); err != nil {
				return nil, err
			}
			continue
		case Result:
			asMap = v
		case map[string]any:
			asMap = v
		default:
			if err := merge(t.name, v); err != nil {
				return nil, err
			}
			continue
		}
		if rn.opts.NoFlatten {
			if err := merge(t.name, out.value); err != nil {
				return nil, err
			}
			continue
		}
		if err := flatten(asMap); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
