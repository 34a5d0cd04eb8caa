package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"budgetbook/internal/client"
	"budgetbook/internal/money"
)

const (
	envServer = "BUDGETBOOK_URL"
	envToken  = "BUDGETBOOK_TOKEN"
)

type globalFlags struct {
	server  string
	token   string
	timeout time.Duration
}

func (g *globalFlags) client() *client.Client {
	return client.New(g.server, client.WithToken(g.token), client.WithTimeout(g.timeout))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd(out io.Writer) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "budgetctl",
		Short:         "Manage budgets and expenses from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&g.server, "server", envOr(envServer, "http://localhost:8080"), "API base URL ($"+envServer+")")
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv(envToken), "access token ($"+envToken+")")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 10*time.Second, "per-request timeout")

	root.AddCommand(
		newSignInCmd(g),
		newOverviewCmd(g),
		newBudgetCmd(g),
		newExpenseCmd(g),
	)
	return root
}

func newSignInCmd(g *globalFlags) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "signin [email or username]",
		Short: "Sign in and print an access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := g.client()
			session, err := c.SignIn(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", session.User.Email)
			fmt.Fprintf(cmd.OutOrStdout(), "export %s=%s\n", envToken, c.Token())
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newOverviewCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show totals, balance and recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ov, err := g.client().Overview(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Budgeted\t%s\n", ov.Display.TotalBudget)
			fmt.Fprintf(w, "Income\t%s\n", ov.Display.TotalIncome)
			fmt.Fprintf(w, "Expenses\t%s\n", ov.Display.TotalExpenses)
			fmt.Fprintf(w, "Balance\t%s\n", ov.Display.Balance)
			if len(ov.RecentActivity) > 0 {
				fmt.Fprintln(w)
				for _, a := range ov.RecentActivity {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Date.Format("2006-01-02"), a.Kind, a.Label, money.Format(a.Amount))
				}
			}
			return w.Flush()
		},
	}
}

func newBudgetCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Work with budgets",
	}

	var page, pageSize int
	list := &cobra.Command{
		Use:   "list",
		Short: "List budgets with their spent amounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := g.client().ListBudgets(cmd.Context(), page, pageSize)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPERIOD\tSPENT\tAMOUNT")
			for _, b := range result.Data {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Period, money.Format(b.Spent), money.Format(b.Amount))
			}
			fmt.Fprintf(w, "page %d of %d (%d budgets)\n", result.Page, result.TotalPages, result.TotalItems)
			return w.Flush()
		},
	}
	list.Flags().IntVar(&page, "page", 1, "page number")
	list.Flags().IntVar(&pageSize, "page-size", 20, "budgets per page")

	cmd.AddCommand(list)
	return cmd
}

func newExpenseCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Record and remove expenses",
	}

	var (
		amount   string
		category string
		date     string
		budgetID string
	)
	add := &cobra.Command{
		Use:   "add [description]",
		Short: "Record an expense, charging its budget if one is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minor, err := money.ParseAmount(amount)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			req := client.ExpenseRequest{
				Amount:      minor,
				Category:    category,
				Description: args[0],
				Date:        date,
			}
			if budgetID != "" {
				req.BudgetID = &budgetID
			}
			expense, err := g.client().CreateExpense(cmd.Context(), req)
			if client.IsNotFound(err) && budgetID != "" {
				return fmt.Errorf("budget %s does not exist: %w", budgetID, err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s (%s)\n", money.Format(expense.Amount), expense.ID)
			return nil
		},
	}
	add.Flags().StringVarP(&amount, "amount", "a", "", "amount, e.g. 12.50")
	add.Flags().StringVarP(&category, "category", "c", "", "expense category")
	add.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (defaults to today)")
	add.Flags().StringVarP(&budgetID, "budget", "b", "", "budget to charge")
	_ = add.MarkFlagRequired("amount")
	_ = add.MarkFlagRequired("category")

	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an expense, releasing its amount from its budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.client().DeleteExpense(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, del)
	return cmd
}
