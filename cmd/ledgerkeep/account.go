// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/ledgerkeep/ledgerkeep/internal/auth"
)

// NewRegisterCmd creates the register subcommand.
func NewRegisterCmd() *cobra.Command {
	var (
		name     string
		email    string
		role     string
		password string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account and log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRegister(cmd, auth.RegisterInput{
				Name:     name,
				Email:    email,
				Password: password,
				Role:     auth.Role(role),
			}, nil)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&role, "role", "", "account role (defaults to User)")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted if omitted)")

	return cmd
}

func runRegister(cmd *cobra.Command, in auth.RegisterInput, deps *Deps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	mgr, cleanup, err := deps.ManagerFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if in.Password == "" {
		in.Password, err = readSecret(cmd, "Password: ")
		if err != nil {
			return err
		}
	}

	user, err := mgr.Register(ctx, in)
	if err != nil {
		return err
	}

	cmd.Printf("Registered %s <%s> (%s)\n", user.Name, user.Email, user.Role)
	return nil
}

// NewPasswdCmd creates the passwd subcommand.
func NewPasswdCmd() *cobra.Command {
	var (
		current string
		next    string
	)

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the current account's password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPasswd(cmd, current, next, nil)
		},
	}

	cmd.Flags().StringVar(&current, "current", "", "current password (prompted if omitted)")
	cmd.Flags().StringVar(&next, "new", "", "new password (prompted if omitted)")

	return cmd
}

func runPasswd(cmd *cobra.Command, current, next string, deps *Deps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	mgr, cleanup, err := deps.ManagerFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if !mgr.CheckAuth(ctx) {
		return oops.Code("AUTH_NOT_AUTHENTICATED").Errorf("not logged in")
	}

	if current == "" {
		current, err = readSecret(cmd, "Current password: ")
		if err != nil {
			return err
		}
	}
	if next == "" {
		next, err = readSecret(cmd, "New password: ")
		if err != nil {
			return err
		}
	}

	if err := mgr.ChangePassword(ctx, current, next); err != nil {
		return err
	}

	cmd.Println("Password changed")
	return nil
}

// NewProfileCmd creates the profile subcommand.
func NewProfileCmd() *cobra.Command {
	var in auth.ProfileUpdate

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the current account's profile",
		Long: `Update name, email, or password of the logged-in account.
Only the fields given as flags are changed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProfile(cmd, in, nil)
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "new display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "new email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "new password")

	return cmd
}

func runProfile(cmd *cobra.Command, in auth.ProfileUpdate, deps *Deps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	mgr, cleanup, err := deps.ManagerFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if !mgr.CheckAuth(ctx) {
		return oops.Code("AUTH_NOT_AUTHENTICATED").Errorf("not logged in")
	}

	if in.Name == "" && in.Email == "" && in.Password == "" {
		return oops.Code("CONFIG_INVALID").Errorf("nothing to update, pass --name, --email, or --password")
	}

	user, err := mgr.UpdateProfile(ctx, in)
	if err != nil {
		return err
	}

	cmd.Printf("Updated profile: %s <%s>\n", user.Name, user.Email)
	return nil
}
