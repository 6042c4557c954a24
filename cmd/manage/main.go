// Command manage runs administrative account tasks against the site database.
//
//	manage createsuperuser --email admin@example.com --username admin --password ...
//	manage setflags --email someone@example.com --staff=false --active=true
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"blogsite/internal/config"
	"blogsite/internal/domain"
	"blogsite/internal/repository/sqlite"
	"blogsite/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	manager := service.NewManager(userRepo)

	var user *domain.User
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "createsuperuser":
		user, err = createSuperuser(ctx, manager, args)
	case "setflags":
		user, err = setFlags(ctx, manager, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatalf("%s: %v", os.Args[1], err)
	}

	logger.WithFields(logrus.Fields{
		"username":     user.Username,
		"email":        user.Email,
		"is_staff":     user.IsStaff,
		"is_active":    user.IsActive,
		"is_superuser": user.IsSuperuser,
	}).Info("done")
}

func createSuperuser(ctx context.Context, manager *service.Manager, args []string) (*domain.User, error) {
	fs := pflag.NewFlagSet("createsuperuser", pflag.ExitOnError)
	email := fs.String("email", "", "email address (login identifier)")
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password; empty creates an account without a usable password")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return manager.CreateSuperuser(ctx, *email, *username, *password, service.ExtraFields{})
}

func setFlags(ctx context.Context, manager *service.Manager, args []string) (*domain.User, error) {
	fs := pflag.NewFlagSet("setflags", pflag.ExitOnError)
	email := fs.String("email", "", "email address of the account")
	staff := fs.Bool("staff", false, "set is_staff")
	active := fs.Bool("active", true, "set is_active")
	superuser := fs.Bool("superuser", false, "set is_superuser")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *email == "" {
		return nil, fmt.Errorf("--email is required")
	}

	// only flags given on the command line are applied
	var flags service.ExtraFields
	if fs.Changed("staff") {
		flags.IsStaff = staff
	}
	if fs.Changed("active") {
		flags.IsActive = active
	}
	if fs.Changed("superuser") {
		flags.IsSuperuser = superuser
	}
	return manager.SetFlags(ctx, *email, flags)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: manage <createsuperuser|setflags> [flags]")
}
