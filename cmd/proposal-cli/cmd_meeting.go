package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func newMeetingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meeting",
		Short: "Schedule the virtual meeting of a proposal",
	}
	cmd.AddCommand(meetingRequestCmd())
	cmd.AddCommand(meetingBookCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "confirm <id>",
		Short: "Confirm a booked meeting",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			p, err := apiClient.Meetings.Confirm(context.Background(), args[0])
			if err != nil {
				fatal("confirm meeting", err)
			}
			outputProposal(p)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "decline <id>",
		Short: "Decline the meeting",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			p, err := apiClient.Meetings.Decline(context.Background(), args[0])
			if err != nil {
				fatal("decline meeting", err)
			}
			outputProposal(p)
		},
	})
	return cmd
}

func meetingRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <id> <date>...",
		Short: "Request a meeting with candidate dates",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			dates := make([]time.Time, 0, len(args)-1)
			for _, raw := range args[1:] {
				d, err := parseDate(raw)
				if err != nil {
					fatal("parse date", err)
				}
				dates = append(dates, d)
			}
			p, err := apiClient.Meetings.Request(context.Background(), args[0], dates...)
			if err != nil {
				fatal("request meeting", err)
			}
			outputProposal(p)
		},
	}
}

func meetingBookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "book <id> <date>",
		Short: "Book the meeting on a date",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			d, err := parseDate(args[1])
			if err != nil {
				fatal("parse date", err)
			}
			p, err := apiClient.Meetings.Book(context.Background(), args[0], d)
			if err != nil {
				fatal("book meeting", err)
			}
			outputProposal(p)
		},
	}
}
