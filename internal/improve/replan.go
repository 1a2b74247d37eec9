package improve

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/chaoskit/chaoskit/internal/chaosmesh"
	"github.com/chaoskit/chaoskit/internal/llm"
	"github.com/chaoskit/chaoskit/internal/model"
)

var modSuffix = regexp.MustCompile(`_mod(\d+)(\.[a-z0-9]+)$`)

// Replan re-targets the hypothesis at the reconfigured manifests:
// every fault selector is adjusted to the new resource names and every
// steady-state unit test gets a chance to follow renamed targets. The
// adjustment never touches thresholds, so passing criteria stay as
// strict as before.
func (im *Improver) Replan(ctx context.Context, prevYamls, currYamls []model.File, hyp *model.Hypothesis) error {
	prev := concatManifests(prevYamls)
	curr := concatManifests(currYamls)

	for w := range hyp.Fault.Faults {
		for f := range hyp.Fault.Faults[w] {
			fault := &hyp.Fault.Faults[w][f]
			if _, ok := fault.Params["selector"]; !ok {
				continue
			}
			sel, err := chaosmesh.SelectorOf(fault.Params)
			if err != nil {
				return err
			}
			selJSON, err := json.Marshal(sel)
			if err != nil {
				return err
			}
			adjusted, err := im.gw.AdjustFaultScope(ctx, llm.ScopeRequest{
				PrevManifests: prev,
				CurrManifests: curr,
				FaultKind:     fault.Name,
				Selector:      string(selJSON),
			})
			if err != nil {
				return err
			}
			if adjusted.Empty() {
				continue
			}
			if err := chaosmesh.SetSelector(fault.Params, adjusted); err != nil {
				return err
			}
			im.log.Info("fault selector adjusted", "fault", fault.Name, "nameID", fault.NameID)
		}
	}

	for i := range hyp.SteadyStates {
		state := &hyp.SteadyStates[i]
		adj, err := im.gw.AdjustUnitTest(ctx, llm.TestAdjustRequest{
			PrevManifests: prev,
			CurrManifests: curr,
			TestCode:      state.UnitTest.Content,
		})
		if err != nil {
			return err
		}
		if adj.Code == state.UnitTest.Content {
			continue
		}
		fname := nextModPath(state.UnitTest.Fname)
		path, err := im.st.WriteFile(fname, adj.Code)
		if err != nil {
			return err
		}
		state.UnitTest = model.File{Fname: fname, Path: path, Content: adj.Code}
		im.log.Info("unit test re-targeted", "state", state.Name, "file", fname)
	}
	return nil
}

// nextModPath bumps the _mod<N> revision counter in a generated file
// name; a name without one gets _mod1.
func nextModPath(fname string) string {
	m := modSuffix.FindStringSubmatchIndex(fname)
	if m == nil {
		ext := ""
		for i := len(fname) - 1; i >= 0; i-- {
			if fname[i] == '.' {
				ext = fname[i:]
				fname = fname[:i]
				break
			}
		}
		return fname + "_mod1" + ext
	}
	n, _ := strconv.Atoi(fname[m[2]:m[3]])
	return fname[:m[0]] + "_mod" + strconv.Itoa(n+1) + fname[m[4]:m[5]]
}

func concatManifests(yamls []model.File) string {
	out := ""
	for _, y := range yamls {
		out += fmt.Sprintf("# %s\n%s\n", y.Fname, y.Content)
	}
	return out
}
