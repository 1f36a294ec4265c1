// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LedgerKeep Contributors

package main

import (
	"bufio"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// readSecret reads a secret from the command's input stream, prompting
// first. Used when a secret flag is omitted so credentials stay out of
// shell history.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	cmd.Print(prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", oops.Code("INPUT_FAILED").Wrap(err)
	}
	return strings.TrimSpace(line), nil
}

// NewLoginCmd creates the login subcommand.
func NewLoginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in and persist a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, args[0], password, nil)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password (prompted if omitted)")

	return cmd
}

func runLogin(cmd *cobra.Command, email, password string, deps *Deps) error {
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
		password, err = readSecret(cmd, "Password: ")
		if err != nil {
			return err
		}
	}

	user, err := mgr.Login(ctx, email, password)
	if err != nil {
		return err
	}

	cmd.Printf("Logged in as %s (%s)\n", user.Name, user.Role)
	return nil
}

// NewLogoutCmd creates the logout subcommand.
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the persisted session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogout(cmd, nil)
		},
	}
}

func runLogout(cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	mgr, cleanup, err := deps.ManagerFactory(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	mgr.Logout()
	cmd.Println("Logged out")
	return nil
}

// NewWhoamiCmd creates the whoami subcommand.
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the currently authenticated account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWhoami(cmd, nil)
		},
	}
}

func runWhoami(cmd *cobra.Command, deps *Deps) error {
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

	user := mgr.CurrentUser()
	cmd.Printf("%s <%s>\n", user.Name, user.Email)
	cmd.Printf("Role: %s\n", user.Role)
	if user.LastLogin != nil {
		cmd.Printf("Last login: %s\n", user.LastLogin.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}
