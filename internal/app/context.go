package app

import (
	"context"
	"fmt"

	"dicecup/internal/config"
	"dicecup/internal/repo"
)

// ResolveConfig loads dicecup.yml from the workspace, falling back to
// the built-in defaults when no file exists.
func ResolveConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("local")
	}
	return cfg, nil
}

// SeedRBAC writes the config's roles and permissions into the database
// and grants the owner role to the given actor. Re-running is a no-op.
func SeedRBAC(ctx context.Context, r repo.Repo, cfg *config.Config, actorID string, now string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	roles := cfg.RBAC.Roles
	if len(roles) == 0 {
		roles = config.Default(cfg.Workspace.ID).RBAC.Roles
	}
	for roleID, role := range roles {
		if err := r.InsertRole(ctx, tx, roleID, role.Description); err != nil {
			return fmt.Errorf("insert role %s: %w", roleID, err)
		}
		for _, perm := range role.Permissions {
			if err := r.InsertPermission(ctx, tx, perm, ""); err != nil {
				return fmt.Errorf("insert permission %s: %w", perm, err)
			}
			if err := r.AddRolePermission(ctx, tx, roleID, perm); err != nil {
				return fmt.Errorf("grant %s to %s: %w", perm, roleID, err)
			}
		}
	}
	if actorID != "" {
		if err := r.EnsureActor(ctx, tx, actorID, now); err != nil {
			return fmt.Errorf("ensure actor: %w", err)
		}
		if err := r.AssignRole(ctx, tx, actorID, "owner"); err != nil {
			return fmt.Errorf("assign owner: %w", err)
		}
	}
	return tx.Commit()
}
