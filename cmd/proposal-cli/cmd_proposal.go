package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/splitlease/proposals/client"
)

func newProposalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "proposal",
		Aliases: []string{"p"},
		Short:   "Drive a proposal through its lifecycle",
	}
	cmd.AddCommand(proposalCreateCmd())
	cmd.AddCommand(proposalGetCmd())
	cmd.AddCommand(proposalListCmd())
	cmd.AddCommand(proposalSubmitCmd())
	cmd.AddCommand(proposalApplicationCmd())
	cmd.AddCommand(proposalReasonCmd("reject", "Reject the proposal or decline a counteroffer",
		func(ctx context.Context, id, reason string) (*client.Proposal, error) {
			return apiClient.Proposals.Reject(ctx, id, reason)
		}))
	cmd.AddCommand(proposalReasonCmd("cancel", "Cancel the proposal",
		func(ctx context.Context, id, reason string) (*client.Proposal, error) {
			return apiClient.Proposals.Cancel(ctx, id, reason)
		}))
	cmd.AddCommand(proposalCounterCmd())
	cmd.AddCommand(proposalDraftCmd())
	cmd.AddCommand(proposalActionsCmd())
	cmd.AddCommand(proposalHistoryCmd())
	cmd.AddCommand(proposalNegotiationCmd())

	for _, s := range []struct {
		use, short string
		fn         func(ctx context.Context, id string) (*client.Proposal, error)
	}{
		{"accept", "Accept the proposal", func(ctx context.Context, id string) (*client.Proposal, error) {
			return apiClient.Proposals.Accept(ctx, id)
		}},
		{"accept-counter", "Accept the host's counteroffer", func(ctx context.Context, id string) (*client.Proposal, error) {
			return apiClient.Proposals.AcceptCounter(ctx, id)
		}},
		{"documents-drafted", "Mark lease drafts complete", func(ctx context.Context, id string) (*client.Proposal, error) {
			return apiClient.Proposals.DocumentsDrafted(ctx, id)
		}},
		{"review", "Finalize the acting party's document review", func(ctx context.Context, id string) (*client.Proposal, error) {
			return apiClient.Proposals.FinalizeReview(ctx, id)
		}},
		{"payment", "Record the initial payment", func(ctx context.Context, id string) (*client.Proposal, error) {
			return apiClient.Proposals.PaymentSubmitted(ctx, id)
		}},
		{"remind", "Remind the counterpart", func(ctx context.Context, id string) (*client.Proposal, error) {
			return apiClient.Proposals.Remind(ctx, id)
		}},
		{"finalize", "Lock the proposal", func(ctx context.Context, id string) (*client.Proposal, error) {
			return apiClient.Proposals.Finalize(ctx, id)
		}},
		{"unlock", "Unlock the proposal", func(ctx context.Context, id string) (*client.Proposal, error) {
			return apiClient.Proposals.Unlock(ctx, id)
		}},
		{"delete", "Soft-delete a terminal proposal", func(ctx context.Context, id string) (*client.Proposal, error) {
			return apiClient.Proposals.Delete(ctx, id)
		}},
	} {
		cmd.AddCommand(proposalSimpleCmd(s.use, s.short, s.fn))
	}
	return cmd
}

func proposalSimpleCmd(use, short string, fn func(ctx context.Context, id string) (*client.Proposal, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			p, err := fn(context.Background(), args[0])
			if err != nil {
				fatal(use, err)
			}
			outputProposal(p)
		},
	}
}

func proposalReasonCmd(use, short string, fn func(ctx context.Context, id, reason string) (*client.Proposal, error)) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			p, err := fn(context.Background(), args[0], reason)
			if err != nil {
				fatal(use, err)
			}
			outputProposal(p)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Free-text reason")
	return cmd
}

func proposalCreateCmd() *cobra.Command {
	var guest, host, listing string
	var rentalApp bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new proposal",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			p, err := apiClient.Proposals.Create(context.Background(), &client.CreateProposalRequest{
				GuestID:            guest,
				HostID:             host,
				ListingID:          listing,
				RentalAppRequested: rentalApp,
			})
			if err != nil {
				fatal("create proposal", err)
			}
			outputProposal(p)
		},
	}
	cmd.Flags().StringVar(&guest, "guest", "", "Guest ID")
	cmd.Flags().StringVar(&host, "host", "", "Host ID")
	cmd.Flags().StringVar(&listing, "listing", "", "Listing ID")
	cmd.Flags().BoolVar(&rentalApp, "rental-app", false, "Require a rental application before host review")
	_ = cmd.MarkFlagRequired("guest")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("listing")
	return cmd
}

func proposalGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a proposal",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			p, err := apiClient.Proposals.Get(context.Background(), args[0])
			if err != nil {
				fatal("get proposal", err)
			}
			outputProposal(p)
		},
	}
}

func proposalListCmd() *cobra.Command {
	var opts client.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			proposals, hasMore, err := apiClient.Proposals.List(context.Background(), &opts)
			if err != nil {
				fatal("list proposals", err)
			}
			if flagFmt == fmtTable {
				rows := make([][]string, 0, len(proposals))
				for i := range proposals {
					rows = append(rows, proposalRow(&proposals[i]))
				}
				formatTable(proposalHeaders, rows)
				return
			}
			output(map[string]any{"proposals": proposals, "has_more": hasMore}, strconv.Itoa(len(proposals)))
		},
	}
	cmd.Flags().StringVar(&opts.GuestID, "guest", "", "Filter by guest ID")
	cmd.Flags().StringVar(&opts.HostID, "host", "", "Filter by host ID")
	cmd.Flags().StringVar(&opts.ListingID, "listing", "", "Filter by listing ID")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status")
	cmd.Flags().BoolVar(&opts.IncludeDeleted, "include-deleted", false, "Include soft-deleted proposals")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Max results")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Skip results")
	return cmd
}

func proposalSubmitCmd() *cobra.Command {
	var termsPath string
	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit a pending proposal with terms from a YAML file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			terms, err := loadTerms(termsPath)
			if err != nil {
				fatal("read terms", err)
			}
			p, err := apiClient.Proposals.Submit(context.Background(), args[0], terms)
			if err != nil {
				fatal("submit", err)
			}
			outputProposal(p)
		},
	}
	cmd.Flags().StringVar(&termsPath, "terms", "", "Path to a terms YAML file")
	_ = cmd.MarkFlagRequired("terms")
	return cmd
}

func proposalApplicationCmd() *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "application <id>",
		Short: "Record the completed rental application",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			p, err := apiClient.Proposals.CompleteApplication(context.Background(), args[0], ref)
			if err != nil {
				fatal("application", err)
			}
			outputProposal(p)
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "Rental application reference")
	return cmd
}

func proposalCounterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counter <id> <field=value>...",
		Short: "Counteroffer new term values",
		Example: `  proposal-cli --as host proposal counter p1 nightly_price=150 reservation_weeks=10
  proposal-cli --as host proposal counter p1 move_in_date=2026-05-01 check_in_day=monday`,
		Args: cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			changes, err := parseChanges(args[1:])
			if err != nil {
				fatal("parse changes", err)
			}
			p, err := apiClient.Proposals.Counter(context.Background(), args[0], changes)
			if err != nil {
				fatal("counter", err)
			}
			outputProposal(p)
		},
	}
}

func proposalDraftCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "draft <id> <slot> <ref>",
		Short: "Attach a lease draft (authorization_card|payout_schedule|tenancy_agreement|supplemental_agreement)",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			p, err := apiClient.Proposals.AttachDraft(context.Background(), args[0], args[1], args[2])
			if err != nil {
				fatal("attach draft", err)
			}
			outputProposal(p)
		},
	}
}

func proposalActionsCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "actions <id>",
		Short: "Show the actions offered to a role",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			set, err := apiClient.Proposals.Actions(context.Background(), args[0], role)
			if err != nil {
				fatal("actions", err)
			}
			if flagFmt == fmtTable {
				rows := make([][]string, 0, len(set.Affordances))
				for _, a := range set.Affordances {
					rows = append(rows, []string{a.Label, a.Action, strconv.FormatBool(a.Visible), strconv.FormatBool(a.Enabled)})
				}
				fmt.Printf("%s as %s: %s / %s\n", set.Status, set.Role, set.PrimaryLabel, set.SecondaryLabel)
				formatTable([]string{"LABEL", "ACTION", "VISIBLE", "ENABLED"}, rows)
				return
			}
			output(set, set.PrimaryLabel)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "Role to resolve for (platform only; defaults to --as)")
	return cmd
}

func proposalHistoryCmd() *cobra.Command {
	var field string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show field change history",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entries, _, err := apiClient.Proposals.History(context.Background(), args[0], field, limit, offset)
			if err != nil {
				fatal("history", err)
			}
			if flagFmt == fmtTable {
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						strconv.FormatInt(e.Revision, 10),
						e.Timestamp.Format("2006-01-02 15:04:05"),
						e.Actor,
						e.Field,
						string(e.Before),
						string(e.After),
					})
				}
				formatTable([]string{"REV", "TIME", "ACTOR", "FIELD", "BEFORE", "AFTER"}, rows)
				return
			}
			output(entries, strconv.Itoa(len(entries)))
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "Only this field")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip results")
	return cmd
}

func proposalNegotiationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "negotiation <id>",
		Short: "Show counter-offer rounds",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rounds, err := apiClient.Proposals.Negotiation(context.Background(), args[0])
			if err != nil {
				fatal("negotiation", err)
			}
			if flagFmt == fmtTable {
				var rows [][]string
				for _, r := range rounds {
					for field, ch := range r.FieldChanges {
						rows = append(rows, []string{strconv.Itoa(r.RoundIndex), r.Actor, field, string(ch.Before), string(ch.After)})
					}
				}
				formatTable([]string{"ROUND", "ACTOR", "FIELD", "BEFORE", "AFTER"}, rows)
				return
			}
			output(rounds, strconv.Itoa(len(rounds)))
		},
	}
}
