package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warp/workforce-engine/generic"
)

// =============================================================================
// DIRECTORY (generic.Directory interface)
// =============================================================================

const memberColumns = `id, organization_id, name, email, role, manager_id`

func (c *conn) GetMember(ctx context.Context, id string) (*generic.Member, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if noRows(err) {
		return nil, &generic.NotFoundError{Resource: "member", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// FindMemberByEmail matches the email case-insensitively within one organization.
func (c *conn) FindMemberByEmail(ctx context.Context, organizationID, email string) (*generic.Member, error) {
	email = strings.TrimSpace(email)
	row := c.q.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE organization_id = ? AND email = ? COLLATE NOCASE`,
		organizationID, email)
	m, err := scanMember(row)
	if noRows(err) {
		return nil, &generic.NotFoundError{Resource: "member", ID: email}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return m, nil
}

func (c *conn) ListMembersByManager(ctx context.Context, managerID string) ([]generic.Member, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE manager_id = ? ORDER BY name, id`, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []generic.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (c *conn) GetOrganization(ctx context.Context, id string) (*generic.Organization, error) {
	var org generic.Organization
	err := c.q.QueryRowContext(ctx, `SELECT id, name, timezone FROM organizations WHERE id = ?`, id).
		Scan(&org.ID, &org.Name, &org.Timezone)
	if noRows(err) {
		return nil, &generic.NotFoundError{Resource: "organization", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// =============================================================================
// ADMIN WRITES - seeding and tests; identity management lives upstream
// =============================================================================

func (c *conn) SaveOrganization(ctx context.Context, org generic.Organization) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO organizations (id, name, timezone, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, timezone = excluded.timezone
	`, org.ID, org.Name, org.Timezone, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save organization: %w", err)
	}
	return nil
}

func (c *conn) SaveMember(ctx context.Context, m generic.Member) error {
	if !m.Role.Valid() {
		return &generic.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", m.Role)}
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO members (id, organization_id, name, email, role, manager_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			organization_id = excluded.organization_id,
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			manager_id = excluded.manager_id
	`, m.ID, m.OrganizationID, m.Name, strings.TrimSpace(m.Email), m.Role, m.ManagerID, formatTime(time.Now()))
	if isUniqueConstraintError(err) {
		return &generic.ConflictError{Resource: "member", ID: m.Email, Message: "email already in use in this organization"}
	}
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (*generic.Member, error) {
	var m generic.Member
	var role string
	if err := row.Scan(&m.ID, &m.OrganizationID, &m.Name, &m.Email, &role, &m.ManagerID); err != nil {
		return nil, err
	}
	m.Role = generic.Role(role)
	return &m, nil
}
