// Package chaosmesh models the Chaos Mesh fault kinds the scenario
// builder may emit: their parameter schemas, selector validation, and
// rendering of standalone CRs for server-side dry-run.
package chaosmesh

import (
	"fmt"
	"regexp"
)

// Group and version of every Chaos Mesh custom resource.
const (
	Group      = "chaos-mesh.org"
	Version    = "v1alpha1"
	APIVersion = Group + "/" + Version
)

// Kind is one of the supported fault kinds. The set is closed; the
// scenario builder must not invent new ones.
type Kind string

const (
	PodChaos     Kind = "PodChaos"
	NetworkChaos Kind = "NetworkChaos"
	DNSChaos     Kind = "DNSChaos"
	HTTPChaos    Kind = "HTTPChaos"
	StressChaos  Kind = "StressChaos"
	IOChaos      Kind = "IOChaos"
	TimeChaos    Kind = "TimeChaos"
)

// Kinds lists every supported fault kind in a stable order.
func Kinds() []Kind {
	return []Kind{PodChaos, NetworkChaos, DNSChaos, HTTPChaos, StressChaos, IOChaos, TimeChaos}
}

// ParseKind validates a kind name coming from the planner.
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unsupported fault kind %q", name)
}

var chaosSuffix = regexp.MustCompile(`(\w+)(Chaos)`)

// LowerCamel converts a kind to the workflow template field name,
// e.g. PodChaos becomes podChaos and HTTPChaos becomes httpChaos.
func (k Kind) LowerCamel() string {
	return chaosSuffix.ReplaceAllStringFunc(string(k), func(m string) string {
		sub := chaosSuffix.FindStringSubmatch(m)
		lower := ""
		for _, r := range sub[1] {
			lower += string(toLower(r))
		}
		return lower + sub[2]
	})
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// Description is a one-line summary of the kind, used in prompts.
func (k Kind) Description() string {
	switch k {
	case PodChaos:
		return "kills pods or containers to simulate process-level failures"
	case NetworkChaos:
		return "injects latency, loss, duplication, corruption, partition, or bandwidth limits"
	case DNSChaos:
		return "makes DNS resolution return random or error responses for matching patterns"
	case HTTPChaos:
		return "aborts, delays, replaces, or patches HTTP requests and responses on a port"
	case StressChaos:
		return "applies CPU or memory pressure inside target containers"
	case IOChaos:
		return "injects filesystem latency, faults, attribute overrides, or data mistakes"
	case TimeChaos:
		return "shifts the clock observed by target containers by a fixed offset"
	}
	return string(k)
}
