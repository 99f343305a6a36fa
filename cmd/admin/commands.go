package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"plantspack/internal/models"
	"plantspack/internal/repository"
	"plantspack/internal/service"

	"gorm.io/gorm"
)

var errUsage = errors.New(usage)

type adminTools struct {
	users         *service.UserService
	subscriptions *service.SubscriptionService
	accounts      *service.AccountService
}

func newAdminTools(db *gorm.DB) *adminTools {
	userRepo := repository.NewUserRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	return &adminTools{
		users: service.NewUserService(userRepo,
			repository.NewFollowRepository(db),
			repository.NewModerationRepository(db),
			subscriptionRepo),
		subscriptions: service.NewSubscriptionService(subscriptionRepo, userRepo, "", nil),
		accounts:      service.NewAccountService(db, userRepo, subscriptionRepo),
	}
}

func need(args []string, n int) error {
	if len(args) < n {
		return errUsage
	}
	return nil
}

func (a *adminTools) run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "set-tier":
		if err := need(args, 3); err != nil {
			return err
		}
		return a.setTier(ctx, out, args[1], args[2])
	case "set-password":
		if err := need(args, 3); err != nil {
			return err
		}
		return a.setPassword(ctx, out, args[1], args[2])
	case "promote", "demote":
		if err := need(args, 2); err != nil {
			return err
		}
		return a.setAdmin(ctx, out, args[1], args[0] == "promote")
	case "list-admins":
		return a.listAdmins(ctx, out)
	case "delete-user-content":
		if err := need(args, 2); err != nil {
			return err
		}
		return a.deleteUserContent(ctx, out, args[1])
	case "anonymize":
		if err := need(args, 2); err != nil {
			return err
		}
		return a.anonymize(ctx, out, args[1])
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func (a *adminTools) lookup(ctx context.Context, email string) (*models.User, error) {
	user, err := a.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", email, err)
	}
	return user, nil
}

func (a *adminTools) setTier(ctx context.Context, out io.Writer, email, tier string) error {
	user, err := a.lookup(ctx, email)
	if err != nil {
		return err
	}
	sub, err := a.subscriptions.SetTier(ctx, user.ID, tier)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✅ %s (ID: %d) is now on the %s tier\n", user.Username, user.ID, sub.Tier)
	return nil
}

func (a *adminTools) setPassword(ctx context.Context, out io.Writer, email, password string) error {
	user, err := a.lookup(ctx, email)
	if err != nil {
		return err
	}
	if err := a.users.SetPassword(ctx, user.ID, password); err != nil {
		return err
	}
	fmt.Fprintf(out, "✅ Password updated for %s (ID: %d)\n", user.Username, user.ID)
	return nil
}

func (a *adminTools) setAdmin(ctx context.Context, out io.Writer, email string, isAdmin bool) error {
	user, err := a.lookup(ctx, email)
	if err != nil {
		return err
	}
	if user.IsAdmin == isAdmin {
		state := "not an admin"
		if isAdmin {
			state = "already an admin"
		}
		fmt.Fprintf(out, "User %s (ID: %d) is %s\n", user.Username, user.ID, state)
		return nil
	}
	if _, err := a.users.SetAdmin(ctx, user.ID, isAdmin); err != nil {
		return err
	}
	verb := "demoted"
	if isAdmin {
		verb = "promoted"
	}
	fmt.Fprintf(out, "✅ Successfully %s %s (ID: %d)\n", verb, user.Username, user.ID)
	return nil
}

func (a *adminTools) listAdmins(ctx context.Context, out io.Writer) error {
	admins, err := a.users.ListAdmins(ctx)
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		fmt.Fprintln(out, "No admins found in the system")
		return nil
	}

	fmt.Fprintln(out, "📋 Current Admins:")
	fmt.Fprintln(out, "─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Fprintf(out, "ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
	}
	fmt.Fprintln(out, "─────────────────────────────────────")
	return nil
}

func (a *adminTools) deleteUserContent(ctx context.Context, out io.Writer, email string) error {
	user, err := a.lookup(ctx, email)
	if err != nil {
		return err
	}
	posts, comments, err := a.accounts.DeleteUserContent(ctx, user.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✅ Deleted %d posts and %d comments by %s (ID: %d)\n", posts, comments, user.Username, user.ID)
	return nil
}

func (a *adminTools) anonymize(ctx context.Context, out io.Writer, email string) error {
	user, err := a.lookup(ctx, email)
	if err != nil {
		return err
	}
	if err := a.accounts.Anonymize(ctx, user.ID); err != nil {
		return err
	}
	fmt.Fprintf(out, "✅ Anonymized account %d\n", user.ID)
	return nil
}
