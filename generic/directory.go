package generic

import "context"

// =============================================================================
// DIRECTORY - Members and organizations
// =============================================================================

// Member is a person who can be assigned shifts and request leave.
type Member struct {
	ID             string
	Name           string
	Email          string
	Role           Role
	OrganizationID string
	ManagerID      string
}

// Actor returns the identity the member acts under.
func (m Member) Actor() Actor {
	return Actor{ID: m.ID, Role: m.Role, OrganizationID: m.OrganizationID}
}

type Organization struct {
	ID       string
	Name     string
	Timezone string // IANA name, may be empty
}

// Directory resolves members and organizations. Lookups of absent records
// return a *NotFoundError.
type Directory interface {
	GetMember(ctx context.Context, id string) (*Member, error)
	FindMemberByEmail(ctx context.Context, organizationID, email string) (*Member, error)
	ListMembersByManager(ctx context.Context, managerID string) ([]Member, error)
	GetOrganization(ctx context.Context, id string) (*Organization, error)
}
