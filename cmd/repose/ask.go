package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/repose-of-mind/repose/internal/app"
	"github.com/repose-of-mind/repose/internal/auth"
)

func newAskCommand(opts *rootOptions) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message as a user and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			// Auth is bypassed on the CLI; the owner comes from the flag.
			cfg.AuthMode = "header"
			res, err := app.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer res.Cleanup()

			ex, err := res.Chat.Send(cmd.Context(), owner, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ex.BotTurn.Content)
			if !ex.Reply.OK {
				return fmt.Errorf("reply fell back (%s) after %d attempt(s)", ex.Reply.Class, ex.Reply.Attempts)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "user", "cli", "owner id of the conversation")
	return cmd
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		owner string
		wipe  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print or clear a user's conversation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			cfg.AuthMode = "header"
			res, err := app.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer res.Cleanup()

			out := cmd.OutOrStdout()
			if wipe {
				deleted, err := res.Chat.Clear(cmd.Context(), owner)
				if err != nil {
					return err
				}
				if !deleted {
					fmt.Fprintln(out, "No chat history found")
					return nil
				}
				fmt.Fprintln(out, "Chat history cleared successfully")
				return nil
			}

			turns, err := res.Chat.History(cmd.Context(), owner)
			if err != nil {
				return err
			}
			for _, t := range turns {
				fmt.Fprintf(out, "%s  %-4s  %s\n", t.Timestamp.Format(time.RFC3339), t.Sender, t.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "user", "cli", "owner id of the conversation")
	cmd.Flags().BoolVar(&wipe, "clear", false, "delete the conversation instead of printing it")
	return cmd
}

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Mint a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			tok, err := auth.Issue(cfg.AuthJWTSecret, args[0], ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
