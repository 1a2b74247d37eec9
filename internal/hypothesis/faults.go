package hypothesis

import (
	"context"
	"fmt"

	"github.com/chaoskit/chaoskit/internal/cerrors"
	"github.com/chaoskit/chaoskit/internal/chaosmesh"
	"github.com/chaoskit/chaoskit/internal/llm"
	"github.com/chaoskit/chaoskit/internal/model"
	"github.com/chaoskit/chaoskit/internal/util/naming"
)

// dryRunDuration is the placeholder fault duration used when a CR is
// rendered only for server-side validation.
const dryRunDuration = "10s"

// BuildFaultScenario proposes the failure event and refines every
// fault's parameters until the cluster accepts them.
func (b *Builder) BuildFaultScenario(ctx context.Context, data *model.ProcessedData, states []model.SteadyState) (model.FaultScenario, error) {
	overview := data.Overview()
	req := llm.FaultScenarioRequest{
		Overview:     overview,
		Instructions: data.CEInstructions,
		SteadyStates: describeStates(states),
		FaultKinds:   kindCatalog(),
	}

	scenario, err := b.proposeScenario(ctx, req)
	if err != nil {
		return model.FaultScenario{}, err
	}
	b.log.Info("fault scenario proposed", "event", scenario.Event, "waves", len(scenario.Faults))

	for w := range scenario.Faults {
		for f := range scenario.Faults[w] {
			fault := &scenario.Faults[w][f]
			kind, err := chaosmesh.ParseKind(fault.Name)
			if err != nil {
				return model.FaultScenario{}, cerrors.New(cerrors.SchemaFail, err)
			}
			params, err := b.refineFault(ctx, overview, scenario.Description, kind, fault.NameID)
			if err != nil {
				return model.FaultScenario{}, err
			}
			fault.Params = params
		}
	}
	return scenario, nil
}

// proposeScenario retries the proposal until every fault names a known
// Chaos Mesh kind.
func (b *Builder) proposeScenario(ctx context.Context, req llm.FaultScenarioRequest) (model.FaultScenario, error) {
	var lastErr error
	for attempt := 0; attempt < b.cfg.MaxRetries; attempt++ {
		scenario, err := b.gw.ProposeFaultScenario(ctx, req)
		if err != nil {
			return model.FaultScenario{}, err
		}
		if err := validateScenario(scenario); err != nil {
			lastErr = err
			b.log.Info("fault scenario invalid, re-prompting", "attempt", attempt+1, "error", err.Error())
			continue
		}
		return scenario, nil
	}
	return model.FaultScenario{}, cerrors.New(cerrors.BudgetExceeded,
		fmt.Errorf("fault scenario never validated: %w", lastErr))
}

func validateScenario(scenario model.FaultScenario) error {
	if len(scenario.Faults) == 0 {
		return fmt.Errorf("scenario has no fault waves")
	}
	for _, wave := range scenario.Faults {
		if len(wave) == 0 {
			return fmt.Errorf("scenario has an empty fault wave")
		}
		for _, fault := range wave {
			if _, err := chaosmesh.ParseKind(fault.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// refineFault asks for parameters and validates them twice: against
// the kind's schema, then against the API server's dry run. Rejections
// feed the next prompt.
func (b *Builder) refineFault(ctx context.Context, overview, scenario string, kind chaosmesh.Kind, nameID int) (map[string]any, error) {
	hint, err := chaosmesh.SchemaHint(kind)
	if err != nil {
		return nil, err
	}
	faultName := fmt.Sprintf("%s-%d", kind, nameID)

	var history []string
	for attempt := 0; attempt < b.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, cerrors.New(cerrors.UserCancel, err)
		}
		params, err := b.gw.RefineFaultParams(ctx, llm.FaultParamsRequest{
			Overview:  overview,
			Scenario:  scenario,
			FaultName: faultName,
			Schema:    hint,
			History:   history,
		})
		if err != nil {
			return nil, err
		}

		if err := chaosmesh.ValidateParams(kind, params); err != nil {
			history = append(history, err.Error())
			b.log.Info("fault params rejected by schema", "fault", faultName, "attempt", attempt+1)
			continue
		}

		cr, err := chaosmesh.RenderCR(kind, naming.SanitizeK8sName(faultName), b.cfg.Namespace, params, dryRunDuration)
		if err != nil {
			return nil, err
		}
		if err := b.dryRun.DryRunApply(ctx, cr); err != nil {
			history = append(history, err.Error())
			b.log.Info("fault params rejected by dry run", "fault", faultName, "attempt", attempt+1)
			continue
		}
		return params, nil
	}
	return nil, cerrors.Newf(cerrors.BudgetExceeded,
		"fault %s never passed validation within %d tries", faultName, b.cfg.MaxRetries)
}

func kindCatalog() []string {
	kinds := chaosmesh.Kinds()
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, fmt.Sprintf("%s: %s", k, k.Description()))
	}
	return out
}
