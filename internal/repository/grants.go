package repository

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GrantRepository lit et écrit les tables roles, permissions,
// user_roles et role_permissions.
type GrantRepository struct {
	exec    DBTX
	builder squirrel.StatementBuilderType
}

func NewGrantRepository(exec DBTX) *GrantRepository {
	return &GrantRepository{exec: exec, builder: newBuilder()}
}

func (r *GrantRepository) WithTx(tx pgx.Tx) *GrantRepository {
	if tx == nil {
		return r
	}
	return &GrantRepository{exec: tx, builder: r.builder}
}

// RoleNamesByUser retourne les noms des rôles attribués à l'utilisateur
func (r *GrantRepository) RoleNamesByUser(ctx context.Context, userID string) ([]string, error) {
	stmt, args, err := r.builder.Select("r.name").
		From("roles r").
		Join("user_roles ur ON ur.role_id = r.id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("r.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build roles by user sql: %w", err)
	}
	return r.queryNames(ctx, "roles by user", stmt, args...)
}

// PermissionNamesByUser retourne les permissions portées par les rôles de l'utilisateur.
// Une même permission peut apparaître via plusieurs rôles ; DISTINCT les fusionne.
func (r *GrantRepository) PermissionNamesByUser(ctx context.Context, userID string) ([]string, error) {
	stmt, args, err := r.builder.Select("p.name").
		Distinct().
		From("permissions p").
		Join("role_permissions rp ON rp.permission_id = p.id").
		Join("user_roles ur ON ur.role_id = rp.role_id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("p.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build permissions by user sql: %w", err)
	}
	return r.queryNames(ctx, "permissions by user", stmt, args...)
}

// EnsureRole crée le rôle s'il n'existe pas et retourne son id
func (r *GrantRepository) EnsureRole(ctx context.Context, name, description string) (string, error) {
	return r.ensure(ctx, "roles", name, description)
}

// EnsurePermission crée la permission si besoin et retourne son id
func (r *GrantRepository) EnsurePermission(ctx context.Context, name, description string) (string, error) {
	return r.ensure(ctx, "permissions", name, description)
}

// GrantPermission associe une permission à un rôle (idempotent)
func (r *GrantRepository) GrantPermission(ctx context.Context, roleID, permissionID string) error {
	stmt, args, err := r.builder.Insert("role_permissions").
		Columns("role_id", "permission_id").
		Values(roleID, permissionID).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build grant permission sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("grant permission: %w", err)
	}
	return nil
}

// AssignRoleByName attribue un rôle existant à un utilisateur (idempotent)
func (r *GrantRepository) AssignRoleByName(ctx context.Context, userID, roleName string) error {
	sel := r.builder.Select().
		Column(squirrel.Expr("?", userID)).
		Column("id").
		From("roles").
		Where(squirrel.Eq{"name": roleName})

	stmt, args, err := r.builder.Insert("user_roles").
		Columns("user_id", "role_id").
		Select(sel).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build assign role sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("assign role %s: %w", roleName, translate(err))
	}
	if res.RowsAffected() == 0 {
		// rôle inconnu ou déjà attribué : on distingue les deux cas
		exists, err := r.roleExists(ctx, roleName)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("role %s: %w", roleName, ErrNotFound)
		}
	}
	return nil
}

func (r *GrantRepository) roleExists(ctx context.Context, name string) (bool, error) {
	stmt, args, err := r.builder.Select("1").
		Prefix("SELECT EXISTS (").
		From("roles").
		Where(squirrel.Eq{"name": name}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build role exists sql: %w", err)
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("role exists: %w", err)
	}
	return exists, nil
}

func (r *GrantRepository) ensure(ctx context.Context, table, name, description string) (string, error) {
	// DO UPDATE pour que RETURNING renvoie aussi la ligne existante
	stmt, args, err := r.builder.Insert(table).
		Columns("id", "name", "description").
		Values(uuid.NewString(), name, description).
		Suffix("ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description RETURNING id").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build ensure %s sql: %w", table, err)
	}

	var id string
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("ensure %s %s: %w", table, name, err)
	}
	return id, nil
}

func (r *GrantRepository) queryNames(ctx context.Context, op, stmt string, args ...any) ([]string, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", op, err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", op, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", op, err)
	}
	return names, nil
}
