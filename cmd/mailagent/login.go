package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/term"

	"github.com/nhle/mailagent/internal/app"
	"github.com/nhle/mailagent/internal/credential"
	"github.com/nhle/mailagent/internal/mailbox/graph"
	"github.com/nhle/mailagent/internal/model"
)

var loginSkipCheck bool

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.AddCommand(loginMailboxCmd)
	loginCmd.AddCommand(loginAICmd)
	loginCmd.AddCommand(logoutCmd)

	loginMailboxCmd.Flags().BoolVar(&loginSkipCheck, "no-check", false, "store the secret without testing the connection")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store credentials in the system keyring",
}

var loginMailboxCmd = &cobra.Command{
	Use:   "mailbox",
	Short: "Store the mailbox password (IMAP) or sign in (Microsoft Graph)",
	Long: `For the imap provider, prompts for the account password.
For the graph provider with mailbox.graph_client_id set, runs the device
code sign-in; without a client id, prompts for an access token.`,
	RunE: runLoginMailbox,
}

var loginAICmd = &cobra.Command{
	Use:   "ai",
	Short: "Store the API key for the configured language model provider",
	RunE:  runLoginAI,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored mailbox and API credentials",
	RunE:  runLogout,
}

func runLoginMailbox(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mb := cfg.Mailbox

	var secret string
	switch {
	case mb.Provider == model.ProviderGraph && mb.GraphClientID != "":
		tok, err := graph.DeviceLogin(cmd.Context(), mb, func(da *oauth2.DeviceAuthResponse) {
			fmt.Fprintf(cmd.OutOrStdout(), "Open %s and enter code %s\n", da.VerificationURI, da.UserCode)
		})
		if err != nil {
			return err
		}
		data, err := json.Marshal(tok)
		if err != nil {
			return fmt.Errorf("encoding token: %w", err)
		}
		secret = string(data)
	case mb.Provider == model.ProviderGraph:
		secret, err = prompt(cmd, "Graph access token: ")
	default:
		secret, err = prompt(cmd, fmt.Sprintf("Password for %s: ", mb.Username))
	}
	if err != nil {
		return err
	}

	key := credential.MailboxKey(mb)
	if err := credential.Set(key, secret); err != nil {
		return err
	}

	if !loginSkipCheck {
		if err := app.ValidateMailbox(cmd.Context(), mb); err != nil {
			_ = credential.Delete(key)
			return fmt.Errorf("checking mailbox connection: %w", err)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Mailbox credentials saved.")
	return nil
}

func runLoginAI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	key, err := prompt(cmd, fmt.Sprintf("%s API key: ", cfg.AI.Provider))
	if err != nil {
		return err
	}

	if err := credential.Set(credential.AIKey(cfg.AI.Provider), key); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "API key saved.")
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	for _, key := range []string{
		credential.MailboxKey(cfg.Mailbox),
		credential.AIKey(cfg.AI.Provider),
	} {
		if err := credential.Delete(key); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Credentials removed.")
	return nil
}

// prompt reads a secret without echo when stdin is a terminal, or a
// single line otherwise.
func prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), label)

	var value string
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		data, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		value = string(data)
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("reading input: %w", err)
		}
		value = line
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("no value entered")
	}
	return value, nil
}
