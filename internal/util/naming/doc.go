// Package naming provides sanitization and formatting helpers for
// generated chaos cycle artifacts.
//
// Steady-state names, probe pod names, and workflow task names all
// derive from free-form text produced during hypothesis drafting, so
// everything that reaches the Kubernetes API is funneled through
// SanitizeK8sName first.
package naming
