package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/appsail/convo/internal/presentation/tui"
	"github.com/appsail/convo/pkg/domain"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored conversations",
	Long:  `List, inspect, and remove conversations held by the configured state backend.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all live conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		keys, err := app.Sessions.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing conversations: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(keys) == 0 {
			fmt.Fprintln(out, "No live conversations found.")
			return nil
		}

		fmt.Fprintln(out, "Live conversations:")
		for _, k := range keys {
			fmt.Fprintln(out, "- "+k)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <key>",
	Short: "Inspect the state of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		key := domain.ChannelKey(args[0])
		state, err := app.Sessions.Get(cmd.Context(), key)
		if err != nil {
			return fmt.Errorf("loading conversation '%s': %w", key, err)
		}

		if render, _ := cmd.Flags().GetBool("render"); render {
			r, err := tui.NewRenderer(0)
			if err != nil {
				return err
			}
			out, err := r(tui.Transcript(state))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		}

		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling state: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <key>...",
	Short: "Remove one or more conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return errors.New("requires at least one key, or --all")
		}

		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		keys := args
		if all {
			if keys, err = app.Sessions.List(cmd.Context()); err != nil {
				return fmt.Errorf("listing conversations: %w", err)
			}
		}

		var errs []error
		for _, k := range keys {
			k = domain.ChannelKey(k)
			if err := app.Sessions.Delete(cmd.Context(), k); err != nil {
				errs = append(errs, fmt.Errorf("removing '%s': %w", k, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed conversation '%s'\n", k)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionInspectCmd.Flags().Bool("render", false, "Render the conversation as a markdown transcript")
	sessionRmCmd.Flags().Bool("all", false, "Remove every live conversation")
}
