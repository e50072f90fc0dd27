package permissions

// Path names the evaluation branch that produced a decision.
type Path string

const (
	PathDirect   Path = "direct"
	PathFallback Path = "fallback"
	PathNone     Path = "none"
	PathError    Path = "error"
)

// Actor is the authenticated caller as supplied by the identity layer.
type Actor struct {
	UserID       string   `json:"user_id"`
	RoleIDs      []string `json:"role_ids"`
	DepartmentID string   `json:"department_id,omitempty"`
	BranchID     string   `json:"branch_id,omitempty"`
	TeamID       string   `json:"team_id,omitempty"`
}

// Resource carries the organizational placement of the object being accessed.
type Resource struct {
	OwnerID      string `json:"owner_id,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
	BranchID     string `json:"branch_id,omitempty"`
	TeamID       string `json:"team_id,omitempty"`
}

// Request asks whether an action on a resource type is allowed at a scope.
// A nil Resource turns the request into a capability check that skips
// organizational matching.
type Request struct {
	ResourceType string    `json:"resource_type"`
	Action       string    `json:"action"`
	Scope        Scope     `json:"scope,omitempty"`
	Resource     *Resource `json:"resource,omitempty"`
}

// Decision is the evaluator's verdict. Denials are ordinary values.
type Decision struct {
	Allowed        bool   `json:"allowed"`
	Via            Path   `json:"via"`
	Attempted      []Path `json:"attempted,omitempty"`
	ResourceType   string `json:"resource_type"`
	Action         string `json:"action"`
	RequestedScope Scope  `json:"requested_scope"`
	Permission     string `json:"permission,omitempty"`
	RoleID         string `json:"role_id,omitempty"`
	RoleName       string `json:"role_name,omitempty"`
	HeldRoleID     string `json:"held_role_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Requested renders the permission that was asked for.
func (d Decision) Requested() string {
	return d.ResourceType + "." + d.Action + "." + string(d.RequestedScope)
}
