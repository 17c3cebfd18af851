package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/tally/internal/config"
	"github.com/zulandar/tally/internal/provision"
	"golang.org/x/term"
)

// Replaced in tests.
var (
	readPasswordFunc = term.ReadPassword
	isTerminalFunc   = term.IsTerminal
)

func newProvisionCmd() *cobra.Command {
	var (
		configPath string
		mode       string
		name       string
		role       string
		branch     string
		email      string
		askPass    bool
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a login or email account through the identity service",
		Long: `Creates an account through the configured provisioning service.

Login accounts need --branch; the service returns a generated login and
password. Email accounts need --email; the password is prompted for.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := provision.Request{
				Mode:  provision.Mode(mode),
				Name:  name,
				Role:  role,
				Email: email,
			}
			if branch != "" {
				req.BranchID = &branch
			}
			if req.Mode == provision.ModeEmail || askPass {
				pw, err := promptPassword(cmd)
				if err != nil {
					return err
				}
				req.Password = pw
			}
			return runProvision(cmd, configPath, req)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Tally config file")
	cmd.Flags().StringVar(&mode, "mode", string(provision.ModeLogin), "account mode (login, email)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "", "role (student, teacher, manager, admin)")
	cmd.Flags().StringVar(&branch, "branch", "", "branch id (required for login accounts)")
	cmd.Flags().StringVar(&email, "email", "", "email address (required for email accounts)")
	cmd.Flags().BoolVar(&askPass, "password", false, "prompt for a password for login accounts too")
	return cmd
}

func runProvision(cmd *cobra.Command, configPath string, req provision.Request) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client, err := provision.New(cfg.Provision)
	if err != nil {
		if errors.Is(err, provision.ErrNotConfigured) {
			return fmt.Errorf("provision.url is not set in %s", configPath)
		}
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Provision.TimeoutDuration())
	defer cancel()
	acct, err := client.Provision(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(acct)
}

// promptPassword reads a password without echo when stdin is a terminal,
// or a single line from the command's input otherwise.
func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	fd := int(os.Stdin.Fd())
	if cmd.InOrStdin() == os.Stdin && isTerminalFunc(fd) {
		b, err := readPasswordFunc(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r\n"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return "", nil
}
