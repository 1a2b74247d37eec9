package chaosmesh

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// PodChaosParams kills pods or containers.
type PodChaosParams struct {
	Action         string    `json:"action" validate:"required,oneof=pod-kill container-kill"`
	Mode           string    `json:"mode" validate:"required,oneof=one all fixed fixed-percent random-max-percent"`
	Value          string    `json:"value,omitempty"`
	Selector       Selectors `json:"selector" validate:"required"`
	ContainerNames []string  `json:"containerNames,omitempty"`
}

// NetworkTarget scopes the far end of a network fault.
type NetworkTarget struct {
	Mode     string    `json:"mode" validate:"required,oneof=one all fixed fixed-percent random-max-percent"`
	Selector Selectors `json:"selector"`
}

// NetworkDelay configures the delay action.
type NetworkDelay struct {
	Latency     string `json:"latency,omitempty"`
	Correlation string `json:"correlation,omitempty"`
	Jitter      string `json:"jitter,omitempty"`
}

// NetworkLoss configures the loss action.
type NetworkLoss struct {
	Loss        string `json:"loss,omitempty"`
	Correlation string `json:"correlation,omitempty"`
}

// NetworkBandwidth configures the bandwidth action.
type NetworkBandwidth struct {
	Rate   string `json:"rate" validate:"required"`
	Limit  int    `json:"limit" validate:"required"`
	Buffer int    `json:"buffer" validate:"required"`
}

// NetworkChaosParams injects network-level failures.
type NetworkChaosParams struct {
	Action    string            `json:"action" validate:"required,oneof=delay loss duplicate corrupt partition bandwidth"`
	Mode      string            `json:"mode" validate:"required,oneof=one all fixed fixed-percent random-max-percent"`
	Value     string            `json:"value,omitempty"`
	Selector  Selectors         `json:"selector" validate:"required"`
	Direction string            `json:"direction,omitempty" validate:"omitempty,oneof=from to both"`
	Target    *NetworkTarget    `json:"target,omitempty"`
	Delay     *NetworkDelay     `json:"delay,omitempty"`
	Loss      *NetworkLoss      `json:"loss,omitempty"`
	Bandwidth *NetworkBandwidth `json:"bandwidth,omitempty"`
	Device    string            `json:"device,omitempty"`
	ExternalTargets []string    `json:"externalTargets,omitempty"`
}

// DNSChaosParams perturbs DNS resolution.
type DNSChaosParams struct {
	Action   string    `json:"action" validate:"required,oneof=random error"`
	Mode     string    `json:"mode" validate:"required,oneof=one all fixed fixed-percent random-max-percent"`
	Value    string    `json:"value,omitempty"`
	Patterns []string  `json:"patterns,omitempty"`
	Selector Selectors `json:"selector" validate:"required"`
}

// HTTPChaosParams tampers with HTTP traffic.
type HTTPChaosParams struct {
	Mode           string            `json:"mode" validate:"required,oneof=one all fixed fixed-percent random-max-percent"`
	Value          string            `json:"value,omitempty"`
	Target         string            `json:"target" validate:"required,oneof=Request Response"`
	Port           int               `json:"port" validate:"required"`
	Code           int               `json:"code,omitempty"`
	Path           string            `json:"path,omitempty"`
	Method         string            `json:"method,omitempty"`
	RequestHeaders map[string]string `json:"request_headers,omitempty"`
	Abort          *bool             `json:"abort,omitempty"`
	Delay          string            `json:"delay,omitempty"`
	Selector       Selectors         `json:"selector" validate:"required"`
}

// CPUStressor loads CPUs.
type CPUStressor struct {
	Workers int `json:"workers" validate:"required"`
	Load    int `json:"load" validate:"required,min=0,max=100"`
}

// MemoryStressor grows memory usage.
type MemoryStressor struct {
	Workers     int    `json:"workers,omitempty"`
	Size        string `json:"size,omitempty"`
	OOMScoreAdj int    `json:"oomScoreAdj,omitempty"`
}

// Stressors combines the available stress generators.
type Stressors struct {
	Memory *MemoryStressor `json:"memory,omitempty"`
	CPU    *CPUStressor    `json:"cpu,omitempty"`
}

// StressChaosParams applies resource pressure.
type StressChaosParams struct {
	Mode              string     `json:"mode" validate:"required,oneof=one all fixed fixed-percent random-max-percent"`
	Value             string     `json:"value,omitempty"`
	Stressors         *Stressors `json:"stressors,omitempty"`
	StressngStressors string     `json:"stressngStressors,omitempty"`
	ContainerNames    []string   `json:"containerNames,omitempty"`
	Selector          Selectors  `json:"selector" validate:"required"`
}

// IOChaosParams injects filesystem faults.
type IOChaosParams struct {
	Action         string    `json:"action" validate:"required,oneof=latency fault attrOverride mistake"`
	Mode           string    `json:"mode" validate:"required,oneof=one all fixed fixed-percent random-max-percent"`
	Value          string    `json:"value,omitempty"`
	Selector       Selectors `json:"selector" validate:"required"`
	VolumePath     string    `json:"volumePath" validate:"required"`
	Path           string    `json:"path,omitempty"`
	Delay          string    `json:"delay,omitempty"`
	Errno          int       `json:"errno,omitempty"`
	Percent        int       `json:"percent,omitempty"`
	Methods        []string  `json:"methods,omitempty"`
	ContainerNames []string  `json:"containerNames,omitempty"`
}

// TimeChaosParams shifts the observed clock.
type TimeChaosParams struct {
	TimeOffset     string    `json:"timeOffset" validate:"required"`
	ClockIds       []string  `json:"clockIds,omitempty"`
	Mode           string    `json:"mode" validate:"required,oneof=one all fixed fixed-percent random-max-percent"`
	Value          string    `json:"value,omitempty"`
	ContainerNames []string  `json:"containerNames,omitempty"`
	Selector       Selectors `json:"selector" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateParams decodes the free-form parameter map against the
// kind's schema and runs struct validation. Unknown fields are
// rejected so the dry-run never sees silently dropped keys.
func ValidateParams(kind Kind, params map[string]any) error {
	target, err := schemaFor(kind)
	if err != nil {
		return err
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", kind, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%s params do not match schema: %w", kind, err)
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("%s params invalid: %w", kind, err)
	}
	return nil
}

func schemaFor(kind Kind) (any, error) {
	switch kind {
	case PodChaos:
		return &PodChaosParams{}, nil
	case NetworkChaos:
		return &NetworkChaosParams{}, nil
	case DNSChaos:
		return &DNSChaosParams{}, nil
	case HTTPChaos:
		return &HTTPChaosParams{}, nil
	case StressChaos:
		return &StressChaosParams{}, nil
	case IOChaos:
		return &IOChaosParams{}, nil
	case TimeChaos:
		return &TimeChaosParams{}, nil
	}
	return nil, fmt.Errorf("unsupported fault kind %q", kind)
}

// SchemaHint describes a kind's parameter structure for prompt use.
// The selector block is shared by every kind and listed once.
func SchemaHint(kind Kind) (string, error) {
	const selectorHint = `"selector": {"namespaces": [string], "labelSelectors": {string: string}, optional axes: expressionSelectors [{key, operator In|NotIn|Exists|DoesNotExist, values}], annotationSelectors, fieldSelectors, podPhaseSelectors, nodeSelectors, nodes, pods}, "mode": "one"|"all"|"fixed"|"fixed-percent"|"random-max-percent", "value": string when mode needs a count`
	switch kind {
	case PodChaos:
		return `{"action": "pod-kill"|"container-kill", ` + selectorHint + `, "containerNames": [string] for container-kill}`, nil
	case NetworkChaos:
		return `{"action": "delay"|"loss"|"duplicate"|"corrupt"|"partition"|"bandwidth", ` + selectorHint + `, "direction": "to"|"from"|"both", "target": {selector, mode}, "delay": {"latency", "correlation", "jitter"}, "loss": {"loss", "correlation"}, "bandwidth": {"rate", "limit", "buffer"}, "externalTargets": [string]}`, nil
	case DNSChaos:
		return `{"action": "error"|"random", ` + selectorHint + `, "patterns": [string]}`, nil
	case HTTPChaos:
		return `{` + selectorHint + `, "target": "Request"|"Response", "port": int, "method": string, "path": string, "abort": bool, "delay": string, "code": int}`, nil
	case StressChaos:
		return `{` + selectorHint + `, "stressors": {"cpu": {"workers": int, "load": 0-100}, "memory": {"workers": int, "size": string}}, "containerNames": [string]}`, nil
	case IOChaos:
		return `{"action": "latency"|"fault"|"attrOverride"|"mistake", ` + selectorHint + `, "volumePath": string, "path": string, "delay": string, "errno": int, "percent": 0-100, "methods": [string]}`, nil
	case TimeChaos:
		return `{` + selectorHint + `, "timeOffset": string, "clockIds": [string], "containerNames": [string]}`, nil
	}
	return "", fmt.Errorf("unsupported fault kind %q", kind)
}

// SelectorOf extracts the selector block from a parameter map, so the
// replanner can rebind fault scopes without decoding the whole schema.
func SelectorOf(params map[string]any) (Selectors, error) {
	raw, ok := params["selector"]
	if !ok {
		return Selectors{}, fmt.Errorf("params carry no selector")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return Selectors{}, fmt.Errorf("encoding selector: %w", err)
	}
	var sel Selectors
	if err := json.Unmarshal(data, &sel); err != nil {
		return Selectors{}, fmt.Errorf("decoding selector: %w", err)
	}
	return sel, nil
}

// SetSelector replaces the selector block in a parameter map in place.
func SetSelector(params map[string]any, sel Selectors) error {
	data, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("encoding selector: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding selector: %w", err)
	}
	params["selector"] = raw
	return nil
}
