package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spec-kit/account-requests/internal/bootstrap"
	"github.com/spec-kit/account-requests/internal/config"
	"github.com/spec-kit/account-requests/internal/domain"
	"github.com/spec-kit/account-requests/internal/inbound"
	"github.com/spec-kit/account-requests/internal/observability"
	"github.com/spec-kit/account-requests/internal/repository"
)

var (
	actorEmail string
	verbose    bool

	importSubject string

	auditAgent  string
	auditTarget string
	auditAction string
	auditLimit  int
)

var rootCmd = &cobra.Command{
	Use:           "acctctl",
	Short:         "Operate the account request service",
	Long:          `Administrative commands for the account request service: replay raw emails, import requests, manage staff and read the audit trail.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.eml>...",
	Short: "Feed raw RFC 5322 messages through the intake pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				email, err := inbound.ReadMessage(f)
				f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				result, err := c.Intake.Ingest(ctx, email, nil)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\trejected\t%v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", path, result.Action, result.RequestKey)
			}
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <body-file>",
	Short: "Create a request from pasted notification text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			req, err := c.Intake.Import(ctx, cliActor(), importSubject, string(body))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s for %s\n", req.Key, req.RequesterEmail)
			return nil
		})
	},
}

var staffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Manage staff accounts",
}

var staffListCmd = &cobra.Command{
	Use:   "list",
	Short: "List staff accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			members, err := c.Staff.List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tNAME\tROLE\tACTIVE")
			for _, m := range members {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", m.Email, m.Name, m.Role, m.Active)
			}
			return w.Flush()
		})
	},
}

var staffAddCmd = &cobra.Command{
	Use:   "add <email> <name>",
	Short: "Create a staff account with the default password",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			member, err := c.Staff.Create(ctx, cliActor(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", member.Email, member.Role)
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the configured admin account when no staff exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			if err := c.SeedAdmin(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seed complete")
			return nil
		})
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Print audit entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *bootstrap.Container) error {
			entries, err := c.Recorder.List(ctx, repository.AuditFilter{
				ActorEmail:   domain.OptionalString(auditAgent),
				TargetID:     domain.OptionalString(auditTarget),
				ActionPrefix: domain.OptionalString(auditAction),
				Limit:        auditLimit,
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTOR\tACTION\tTARGET\tOK")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
					e.Timestamp.Format("2006-01-02 15:04:05"), e.ActorEmail, e.Action, domain.StringValue(e.TargetID), e.Success)
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actorEmail, "as", "cli@localhost", "email recorded as the actor in the audit trail")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at info level")

	importCmd.Flags().StringVar(&importSubject, "subject", "", "subject line of the pasted email")

	auditCmd.Flags().StringVar(&auditAgent, "agent", "", "filter by actor email")
	auditCmd.Flags().StringVar(&auditTarget, "target", "", "filter by target id, e.g. a request key")
	auditCmd.Flags().StringVar(&auditAction, "action", "", "filter by action prefix, e.g. request.")
	auditCmd.Flags().IntVar(&auditLimit, "limit", repository.DefaultAuditLimit, "maximum entries")

	staffCmd.AddCommand(staffListCmd)
	staffCmd.AddCommand(staffAddCmd)

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(staffCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(auditCmd)
}

func cliActor() domain.Actor {
	return domain.Actor{Email: domain.NormalizeEmail(actorEmail), Name: "acctctl"}
}

func withContainer(cmd *cobra.Command, fn func(context.Context, *bootstrap.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Logger.Format = "console"
	if !verbose {
		cfg.Logger.Level = "warn"
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
