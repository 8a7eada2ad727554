package security

// Operation is a document-scoped action the system understands.
type Operation string

const (
	OpIngest     Operation = "ingest"
	OpRead       Operation = "read"
	OpDelete     Operation = "delete"
	OpAdminister Operation = "administer"
)

// Capability is a system-level action not tied to a single document.
type Capability string

const (
	CapViewSearchResults Capability = "view_search_results"
	CapExecuteWorkflow   Capability = "execute_workflow"
	CapOverrideRoute     Capability = "override_route"
	CapViewAuditLogs     Capability = "view_audit_logs"
	CapManageRules       Capability = "manage_rules"
)

// WildcardLabel in an operation scope grants the operation on any label.
const WildcardLabel = "*"

// RolePolicy configures what a single role may do.  Scopes maps an
// operation to the document labels the role may apply it to.
type RolePolicy struct {
	Capabilities []Capability             `yaml:"capabilities"`
	Scopes       map[Operation][]string   `yaml:"scopes"`
	Administer   bool                     `yaml:"administer"`
}

// Policy is the process-wide role table.  It is loaded once at startup and
// passed into the Evaluator; it is never mutated afterwards.
type Policy struct {
	Roles map[string]RolePolicy `yaml:"roles"`
}

// DefaultPolicy returns the built-in role table used when no policy file is
// configured: viewer < operator < manager < admin.
func DefaultPolicy() Policy {
	return Policy{
		Roles: map[string]RolePolicy{
			"viewer": {
				Capabilities: []Capability{CapViewSearchResults},
				Scopes: map[Operation][]string{
					OpRead: {"general"},
				},
			},
			"operator": {
				Capabilities: []Capability{CapViewSearchResults, CapExecuteWorkflow},
				Scopes: map[Operation][]string{
					OpIngest: {"general"},
					OpRead:   {"general", "internal"},
					OpDelete: {"general"},
				},
			},
			"manager": {
				Capabilities: []Capability{
					CapViewSearchResults, CapExecuteWorkflow,
					CapOverrideRoute, CapViewAuditLogs,
				},
				Scopes: map[Operation][]string{
					OpIngest: {"general", "internal"},
					OpRead:   {"general", "internal", "restricted"},
					OpDelete: {"general", "internal"},
				},
			},
			"admin": {
				Capabilities: []Capability{
					CapViewSearchResults, CapExecuteWorkflow,
					CapOverrideRoute, CapViewAuditLogs, CapManageRules,
				},
				Administer: true,
			},
		},
	}
}

func knownOperation(op Operation) bool {
	switch op {
	case OpIngest, OpRead, OpDelete, OpAdminister:
		return true
	}
	return false
}
