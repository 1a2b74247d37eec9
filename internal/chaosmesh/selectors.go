package chaosmesh

// SetBasedRequirement is one expression selector term.
type SetBasedRequirement struct {
	Key      string   `json:"key" validate:"required"`
	Operator string   `json:"operator" validate:"required,oneof=In NotIn Exists DoesNotExist"`
	Values   []string `json:"values,omitempty"`
}

// Selectors scopes a fault to a set of pods or nodes. All fields are
// optional; an empty value means "do not filter on this axis".
type Selectors struct {
	Namespaces          []string              `json:"namespaces,omitempty"`
	LabelSelectors      map[string]string     `json:"labelSelectors,omitempty"`
	ExpressionSelectors []SetBasedRequirement `json:"expressionSelectors,omitempty" validate:"dive"`
	AnnotationSelectors map[string]string     `json:"annotationSelectors,omitempty"`
	FieldSelectors      map[string]string     `json:"fieldSelectors,omitempty"`
	PodPhaseSelectors   []string              `json:"podPhaseSelectors,omitempty" validate:"dive,oneof=Pending Running Succeeded Failed Unknown"`
	NodeSelectors       map[string]string     `json:"nodeSelectors,omitempty"`
	Nodes               []string              `json:"nodes,omitempty"`
	Pods                map[string][]string   `json:"pods,omitempty"`
}

// Empty reports whether no axis filters anything.
func (s *Selectors) Empty() bool {
	return len(s.Namespaces) == 0 &&
		len(s.LabelSelectors) == 0 &&
		len(s.ExpressionSelectors) == 0 &&
		len(s.AnnotationSelectors) == 0 &&
		len(s.FieldSelectors) == 0 &&
		len(s.PodPhaseSelectors) == 0 &&
		len(s.NodeSelectors) == 0 &&
		len(s.Nodes) == 0 &&
		len(s.Pods) == 0
}
