// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewResetCmd creates the reset subcommand with its request and confirm
// children.
func NewResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Request or confirm a password reset",
	}

	cmd.AddCommand(newResetRequestCmd())
	cmd.AddCommand(newResetConfirmCmd())

	return cmd
}

func newResetRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <email>",
		Short: "Issue a password reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResetRequest(cmd, args[0], nil)
		},
	}
}

func runResetRequest(cmd *cobra.Command, email string, deps *Deps) error {
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

	token, err := mgr.RequestPasswordReset(ctx, email)
	if err != nil {
		return err
	}

	// There is no mailer; the operator relays the token out of band.
	// Unknown emails still succeed with the same leading message.
	cmd.Println("If the email is registered, a reset token has been issued.")
	if token != "" {
		cmd.Printf("Token: %s\n", token)
		cmd.Println("The token is valid for one hour and can be used once.")
	}
	return nil
}

func newResetConfirmCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "confirm <token>",
		Short: "Redeem a reset token and set a new password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResetConfirm(cmd, args[0], password, nil)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "new password (prompted if omitted)")

	return cmd
}

func runResetConfirm(cmd *cobra.Command, token, password string, deps *Deps) error {
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

	if password == "" {
		password, err = readSecret(cmd, "New password: ")
		if err != nil {
			return err
		}
	}

	if err := mgr.ResetPassword(ctx, token, password); err != nil {
		return err
	}

	cmd.Println("Password reset")
	return nil
}
