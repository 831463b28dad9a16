// Package policy implements C5: caller/service visibility gating, per-policy
// predicate evaluation, and deprecated-service filtering.
package policy

import (
	"strings"

	"goa.design/capsearch/internal/domain"
)

// IncludeDeprecatedScope is the scope that lets a caller see deprecated
// services despite the default deprecated-filtering rule.
const IncludeDeprecatedScope = "include_deprecated"

// Engine decides, for a given caller and candidate service, whether the
// service is discoverable. Pure: the same (caller, service) pair always
// yields the same decision within a configuration (spec.md §8).
type Engine struct {
	label string
}

// New constructs a policy Engine with the given label, defaulting to
// "default" when empty. Allow does not read the label.
func New(label string) *Engine {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "default"
	}
	return &Engine{label: label}
}

// Allow evaluates the full policy pipeline for spec.md §4.5: visibility
// gate, then all attached access policies, then deprecated filtering.
func (e *Engine) Allow(caller domain.Identity, bundle domain.ServiceBundle) bool {
	if !e.visibilityAllows(caller, bundle.Service.Visibility) {
		return false
	}
	for _, p := range bundle.Policies {
		if !policyPasses(caller, p) {
			return false
		}
	}
	if bundle.Service.Status == domain.ServiceStatusDeprecated && !caller.HasScope(IncludeDeprecatedScope) {
		return false
	}
	return true
}

func (e *Engine) visibilityAllows(caller domain.Identity, v domain.Visibility) bool {
	switch v {
	case domain.VisibilityPublic:
		return true
	case domain.VisibilityOrgWide:
		return !caller.Anonymous && caller.ID != ""
	case domain.VisibilityInternal:
		return !caller.Anonymous
	case domain.VisibilityRestricted:
		// Falls through entirely to policy predicates; a restricted service
		// with no attached policies is therefore allowed for every caller.
		return true
	default:
		return !caller.Anonymous
	}
}

// policyPasses evaluates one AccessPolicy. A role-based policy (non-empty
// RequiredRoles) passes when caller holds every required role. An
// attribute-based policy (non-empty Attributes) passes when every
// predicate matches. A policy with both sets must pass both.
func policyPasses(caller domain.Identity, p domain.AccessPolicy) bool {
	for _, role := range p.RequiredRoles {
		if !caller.HasRole(role) {
			return false
		}
	}
	for _, pred := range p.Attributes {
		if !evaluatePredicate(caller.Attributes, pred) {
			return false
		}
	}
	return true
}

// evaluatePredicate interprets one attribute predicate against the caller's
// attribute map: equals, in, contains, all, any. Keeping this a small
// interpreter (rather than one Go type per attribute schema) is required by
// Design Notes' "dynamic attribute bags" guidance.
func evaluatePredicate(attrs map[string]any, pred domain.AttributePredicate) bool {
	actual, ok := attrs[pred.Key]
	if !ok {
		return false
	}
	switch pred.Kind {
	case domain.PredicateEquals:
		return equalsValue(actual, pred.Value)
	case domain.PredicateIn:
		return containsValue(toSlice(pred.Value), actual)
	case domain.PredicateContains:
		return containsValue(toSlice(actual), pred.Value)
	case domain.PredicateAll:
		for _, want := range toSlice(pred.Value) {
			if !containsValue(toSlice(actual), want) {
				return false
			}
		}
		return true
	case domain.PredicateAny:
		for _, want := range toSlice(pred.Value) {
			if containsValue(toSlice(actual), want) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func equalsValue(a, b any) bool {
	return a == b
}

func containsValue(haystack []any, needle any) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// toSlice normalizes a scalar or []any value into a []any so the
// in/contains/all/any predicates can treat both shapes uniformly.
func toSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return []any{v}
}
