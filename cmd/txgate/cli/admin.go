package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/txgate/txgate/internal/auth"
	"github.com/txgate/txgate/internal/platform/db"
	"github.com/txgate/txgate/internal/rbac"
	"github.com/txgate/txgate/internal/seed"
	"github.com/txgate/txgate/internal/shared"
	migrations "github.com/txgate/txgate/migrations/postgres"
)

type userFinder interface {
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
}

type roleAdmin interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error
	RevokeRole(ctx context.Context, userID uuid.UUID, roleName string) (bool, error)
	rbac.Resolver
}

// withRuntime opens the shared dependencies for the duration of fn.
func withRuntime(cmd *cobra.Command, fn func(context.Context, *runtime) error) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				n, err := db.Migrate(ctx, rt.pool, migrations.FS, rt.logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
				return nil
			})
		},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Load permissions, roles and users (built-in defaults when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := loadSeedFile(args)
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				seeder := seed.Seeder{Users: rt.users, RBAC: rt.rbac, Logger: rt.logger}
				res, err := seeder.Apply(ctx, file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "permissions=%d roles=%d users_created=%d users_kept=%d\n",
					res.Permissions, res.Roles, res.UsersCreated, res.UsersKept)
				return nil
			})
		},
	}
}

func loadSeedFile(args []string) (seed.File, error) {
	if len(args) == 0 {
		return seed.Default()
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return seed.File{}, fmt.Errorf("read seed file: %w", err)
	}
	return seed.Parse(data)
}

func newRolesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Inspect and change role assignments",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List roles and their permissions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
					return listRoles(ctx, cmd.OutOrStdout(), rt.rbac)
				})
			},
		},
		&cobra.Command{
			Use:   "assign <email> <role>",
			Short: "Grant a role to a user",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
					return assignRole(ctx, cmd.OutOrStdout(), rt.users, rt.rbac, args[0], args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "revoke <email> <role>",
			Short: "Remove a role from a user",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
					return revokeRole(ctx, cmd.OutOrStdout(), rt.users, rt.rbac, args[0], args[1])
				})
			},
		},
	)
	return cmd
}

func newPermissionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "permissions <email>",
		Short: "Show a user's effective permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				return showPermissions(ctx, cmd.OutOrStdout(), rt.users, rt.rbac, args[0])
			})
		},
	}
}

func newPruneIdempotencyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-idempotency",
		Short: "Delete idempotency keys older than IDEMPOTENCY_RETENTION",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				store := shared.NewIdempotencyStore(rt.pool)
				if err := store.Cleanup(ctx, rt.cfg.IdempotencyRetention); err != nil {
					return err
				}
				rt.logger.Info("idempotency keys pruned", slog.Duration("retention", rt.cfg.IdempotencyRetention))
				return nil
			})
		},
	}
}

func listRoles(ctx context.Context, w io.Writer, roles roleAdmin) error {
	list, err := roles.ListRoles(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tPERMISSIONS")
	for _, role := range list {
		names := make([]string, 0, len(role.Permissions))
		for _, p := range role.Permissions {
			names = append(names, p.Name)
		}
		fmt.Fprintf(tw, "%s\t%s\n", role.Name, strings.Join(names, ", "))
	}
	return tw.Flush()
}

func assignRole(ctx context.Context, w io.Writer, users userFinder, roles roleAdmin, email, role string) error {
	user, err := users.FindByEmail(ctx, auth.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("user %s: %w", email, err)
	}
	if err := roles.AssignRole(ctx, user.ID, role); err != nil {
		return fmt.Errorf("assign %s: %w", role, err)
	}
	fmt.Fprintf(w, "%s now holds %s\n", user.Email, role)
	return nil
}

func revokeRole(ctx context.Context, w io.Writer, users userFinder, roles roleAdmin, email, role string) error {
	user, err := users.FindByEmail(ctx, auth.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("user %s: %w", email, err)
	}
	removed, err := roles.RevokeRole(ctx, user.ID, role)
	if err != nil {
		return fmt.Errorf("revoke %s: %w", role, err)
	}
	if !removed {
		fmt.Fprintf(w, "%s did not hold %s\n", user.Email, role)
		return nil
	}
	fmt.Fprintf(w, "%s no longer holds %s\n", user.Email, role)
	return nil
}

func showPermissions(ctx context.Context, w io.Writer, users userFinder, roles roleAdmin, email string) error {
	user, err := users.FindByEmail(ctx, auth.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("user %s: %w", email, err)
	}
	perms, err := roles.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return err
	}
	if perms.Len() == 0 {
		fmt.Fprintf(w, "%s has no permissions\n", user.Email)
		return nil
	}
	for _, name := range perms.Sorted() {
		fmt.Fprintln(w, name)
	}
	return nil
}
