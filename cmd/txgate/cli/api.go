package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/txgate/txgate/internal/auth"
	"github.com/txgate/txgate/internal/client"
	"github.com/txgate/txgate/internal/transactions"
)

// apiOptions holds the persistent flags shared by API commands.
type apiOptions struct {
	BaseURL   string
	TokenPath string
	Output    string
}

func (o *apiOptions) client() *client.Client {
	path := o.TokenPath
	if path == "" {
		path = client.DefaultTokenPath()
	}
	return client.New(o.BaseURL, client.NewSession(client.FileTokenStore{Path: path}))
}

func (o *apiOptions) json() bool {
	return strings.EqualFold(o.Output, "json")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readPassword takes the flag value or the first line of stdin.
func readPassword(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password required (use --password or pipe it on stdin)")
	}
	return line, nil
}

func newLoginCommand(opts *apiOptions) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in and remember the access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			res, err := opts.client().Login(cmd.Context(), args[0], pw)
			if err != nil {
				return err
			}
			return printAuthResult(cmd.OutOrStdout(), opts, res)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when empty)")
	return cmd
}

func newRegisterCommand(opts *apiOptions) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account and remember the access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			res, err := opts.client().Register(cmd.Context(), args[0], pw)
			if err != nil {
				return err
			}
			return printAuthResult(cmd.OutOrStdout(), opts, res)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when empty)")
	return cmd
}

func newLogoutCommand(opts *apiOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newMeCommand(opts *apiOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user and permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := opts.client().Me(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), me)
			}
			printUser(cmd.OutOrStdout(), me)
			return nil
		},
	}
}

func newTxCommand(opts *apiOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "List, record and approve transactions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := opts.client().ListTransactions(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), txs)
			}
			return printTransactions(cmd.OutOrStdout(), txs)
		},
	}

	var title, price, idemKey string
	create := &cobra.Command{
		Use:   "create",
		Short: "Record a pending transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := transactions.NewMoney(strings.TrimPrefix(strings.TrimSpace(price), "£"))
			if err != nil {
				return fmt.Errorf("invalid --price %q", price)
			}
			tx, err := opts.client().CreateTransaction(cmd.Context(), title, amount, idemKey)
			if err != nil {
				return err
			}
			return printTransaction(cmd.OutOrStdout(), opts, tx)
		},
	}
	create.Flags().StringVar(&title, "title", "", "transaction title")
	create.Flags().StringVar(&price, "price", "", "amount in GBP, e.g. 150.50")
	create.Flags().StringVar(&idemKey, "idempotency-key", "", "replay guard sent as Idempotency-Key")
	_ = create.MarkFlagRequired("title")
	_ = create.MarkFlagRequired("price")

	approve := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}
			tx, err := opts.client().ApproveTransaction(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printTransaction(cmd.OutOrStdout(), opts, tx)
		},
	}

	cmd.AddCommand(list, create, approve)
	return cmd
}

func printAuthResult(w io.Writer, opts *apiOptions, res auth.AuthResult) error {
	if opts.json() {
		return writeJSON(w, res.User)
	}
	printUser(w, res.User)
	return nil
}

func printUser(w io.Writer, u auth.UserSummary) {
	perms := "(none)"
	if len(u.Permissions) > 0 {
		perms = strings.Join(u.Permissions, ", ")
	}
	fmt.Fprintf(w, "%s (%s)\npermissions: %s\n", u.Email, u.ID, perms)
}

func printTransaction(w io.Writer, opts *apiOptions, tx transactions.Transaction) error {
	if opts.json() {
		return writeJSON(w, tx)
	}
	return printTransactions(w, []transactions.Transaction{tx})
}

func printTransactions(w io.Writer, txs []transactions.Transaction) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tSTATUS\tCREATED BY\tAPPROVED BY")
	for _, tx := range txs {
		approver := "-"
		if tx.ApprovedBy != nil {
			approver = tx.ApprovedBy.Email
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID, tx.Title, FormatGBP(tx.PriceGBP), tx.Status, tx.CreatedBy.Email, approver)
	}
	return tw.Flush()
}
