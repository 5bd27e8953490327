/*
approval.go - Approval gate shared by shifts and leave

PURPOSE:
  Every status-changing transition in the engine asks one question before
  touching a record: may this caller move this record? The answer depends
  on the caller's role and on how the caller relates to the record
  (same organization, owner, the owner's direct manager). Authorize is the
  only place that question is answered, so shift and leave rules cannot
  drift apart.

  The gate also defines Decision, the reviewer/timestamp/comment triple
  recorded on a record whenever a manager rules on it.

USAGE:
  err := generic.Authorize(actor, generic.Subject{
      OrganizationID: shift.OrganizationID,
      OwnerID:        shift.AssignedTo,
  }, generic.Rule{Action: "clock in", Relation: generic.RelationOwner})

SEE ALSO:
  - shift/engine.go, timeoff/request.go: Callers
*/
package generic

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// =============================================================================
// ACTOR - Resolved caller identity
// =============================================================================

type Role string

const (
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

func (r Role) Valid() bool { return r == RoleManager || r == RoleStaff }

// Actor is the caller of an operation. The engine trusts it; credentials
// are verified upstream.
type Actor struct {
	ID             string
	Role           Role
	OrganizationID string
}

func (a Actor) IsManager() bool { return a.Role == RoleManager }

// =============================================================================
// SUBJECT / RULE
// =============================================================================

// Subject describes the record being acted on, in the terms the gate needs.
type Subject struct {
	OrganizationID string
	OwnerID        string // assignee of a shift, requester of leave
	ManagerID      string // the owner's direct manager
}

// Relation is the relationship between actor and subject a rule requires.
type Relation int

const (
	// RelationNone only checks the role.
	RelationNone Relation = iota
	// RelationSameOrganization requires actor and subject in one organization.
	RelationSameOrganization
	// RelationOwner requires the actor to own the subject, within its organization.
	RelationOwner
	// RelationDirectManager requires the actor to be the owner's manager.
	RelationDirectManager
	// RelationOwnerOrOrgManager accepts the owner or any manager of the organization.
	RelationOwnerOrOrgManager
)

// Rule names a transition, the roles allowed to perform it and the
// relationship they must have to the subject. Empty Roles means any role.
type Rule struct {
	Action   string
	Roles    []Role
	Relation Relation
}

// Common rules.
var (
	ManagerOfOrganization = Rule{Roles: []Role{RoleManager}, Relation: RelationSameOrganization}
	StaffOfOrganization   = Rule{Roles: []Role{RoleStaff}, Relation: RelationSameOrganization}
	OwnerOnly             = Rule{Relation: RelationOwner}
	DirectManagerOnly     = Rule{Roles: []Role{RoleManager}, Relation: RelationDirectManager}
	OwnerOrManager        = Rule{Relation: RelationOwnerOrOrgManager}
)

// For returns a copy of the rule labelled with an action, used in error messages.
func (r Rule) For(action string) Rule {
	r.Action = action
	return r
}

// =============================================================================
// AUTHORIZE
// =============================================================================

// Authorize returns nil when actor may perform rule on subject, and a
// *ForbiddenError otherwise.
func Authorize(actor Actor, subject Subject, rule Rule) error {
	action := rule.Action
	if action == "" {
		action = "this action"
	}

	if len(rule.Roles) > 0 && !slices.Contains(rule.Roles, actor.Role) {
		return &ForbiddenError{Reason: fmt.Sprintf("only %s can %s", roleList(rule.Roles), action)}
	}

	sameOrg := actor.OrganizationID != "" && actor.OrganizationID == subject.OrganizationID
	owner := sameOrg && actor.ID != "" && actor.ID == subject.OwnerID

	switch rule.Relation {
	case RelationSameOrganization:
		if !sameOrg {
			return &ForbiddenError{Reason: fmt.Sprintf("cannot %s outside your organization", action)}
		}
	case RelationOwner:
		if !owner {
			return &ForbiddenError{Reason: fmt.Sprintf("can only %s for records assigned to you", action)}
		}
	case RelationDirectManager:
		if actor.ID == "" || actor.ID != subject.ManagerID {
			return &ForbiddenError{Reason: fmt.Sprintf("only the staff member's manager can %s", action)}
		}
	case RelationOwnerOrOrgManager:
		if !owner && !(actor.IsManager() && sameOrg) {
			return &ForbiddenError{Reason: fmt.Sprintf("not allowed to %s", action)}
		}
	}
	return nil
}

func roleList(roles []Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r) + "s"
	}
	return strings.Join(names, " or ")
}

// =============================================================================
// DECISION - Recorded verdict
// =============================================================================

// Decision records who ruled on a record, when, and what they said.
type Decision struct {
	ReviewerID string
	At         time.Time
	Comment    string
}

func NewDecision(actor Actor, at time.Time, comment string) Decision {
	return Decision{ReviewerID: actor.ID, At: at, Comment: comment}
}
