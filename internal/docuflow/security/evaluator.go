package security

// Decision is the outcome of a single authorization check.  A denial is a
// value, never an error: callers must be able to tell "denied" apart from
// "the system broke".
type Decision struct {
	Allowed bool
	Reason  string
}

// Evaluator answers authorization questions from a fixed policy.  It holds
// no mutable state, so decisions are reproducible and safe to evaluate
// concurrently.
type Evaluator struct {
	policy Policy
}

func NewEvaluator(p Policy) *Evaluator {
	return &Evaluator{policy: p}
}

// DecideDocument checks whether role may apply op to a document carrying the
// given labels.  A role with the administer wildcard passes every check;
// otherwise the document's labels must intersect the role's scope for op.
// Absence of a grant is a denial, not an error.
func (e *Evaluator) DecideDocument(role string, op Operation, labels []string) Decision {
	rp, ok := e.policy.Roles[role]
	if !ok {
		return Decision{Allowed: false, Reason: "unknown_role"}
	}
	if rp.Administer {
		return Decision{Allowed: true, Reason: "administer_override"}
	}

	scope := rp.Scopes[op]
	if len(scope) == 0 {
		return Decision{Allowed: false, Reason: "no_grant_for_operation"}
	}
	if len(labels) == 0 {
		return Decision{Allowed: false, Reason: "document_has_no_label"}
	}

	scoped := make(map[string]struct{}, len(scope))
	for _, l := range scope {
		if l == WildcardLabel {
			return Decision{Allowed: true, Reason: "label_allowed"}
		}
		scoped[l] = struct{}{}
	}
	for _, l := range labels {
		if _, ok := scoped[l]; ok {
			return Decision{Allowed: true, Reason: "label_allowed"}
		}
	}
	return Decision{Allowed: false, Reason: "label_not_allowed"}
}

// DecideCapability checks a system-level capability such as view_audit_logs.
func (e *Evaluator) DecideCapability(role string, c Capability) Decision {
	rp, ok := e.policy.Roles[role]
	if !ok {
		return Decision{Allowed: false, Reason: "unknown_role"}
	}
	if rp.Administer {
		return Decision{Allowed: true, Reason: "administer_override"}
	}
	for _, have := range rp.Capabilities {
		if have == c {
			return Decision{Allowed: true, Reason: "capability_allowed"}
		}
	}
	return Decision{Allowed: false, Reason: "capability_not_allowed"}
}

// CanRead reports whether role may read a document with the given labels.
// It is the pure check used to filter ranked query candidates; the query
// operation as a whole is audited once by the caller.
func (e *Evaluator) CanRead(role string, labels []string) bool {
	return e.DecideDocument(role, OpRead, labels).Allowed
}
