package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/exa-sheets/internal/sheetio"
	"github.com/sells-group/exa-sheets/internal/store"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sessions"},
	Short:   "Staged fills: start, sample, fill the rest, export",
	Long: "A session stores an input sheet and every answer written for it. Fill a small sample, " +
		"review it, then fill the remaining rows. Interrupted fills resume from the cells already saved.",
}

// -- session start --

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Create a session from an input sheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		input, _ := cmd.Flags().GetString("input")
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = input
		}

		in, err := sheetio.Read(input)
		if err != nil {
			return eris.Wrap(err, "session start")
		}

		env, err := initSessionEnv(ctx, false, 0)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		sess, err := env.manager.Start(ctx, name, in)
		if err != nil {
			return eris.Wrap(err, "session start")
		}

		fmt.Fprintf(os.Stderr, "Created session with %d rows and %d data points.\n", sess.Input.Len(), len(sess.Input.Attributes()))
		fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
		return nil
	},
}

// -- session sample --

var sessionSampleCmd = &cobra.Command{
	Use:   "sample <session-id>",
	Short: "Fill the first rows of a session for review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rows, _ := cmd.Flags().GetInt("rows")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		env, err := initSessionEnv(ctx, true, concurrency)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		res, err := env.manager.FillSample(ctx, args[0], rows)
		if res != nil {
			formatRecords(cmd.OutOrStdout(), res.Preview)
			attrs := len(res.Session.Input.Attributes())
			remaining := len(res.Session.Output.Pending()) * attrs
			fmt.Fprintf(os.Stderr, "%d NA cells in sample. Filling the remaining %d cells costs about $%.4f.\n",
				env.bar.Unavailable(), remaining, estimateSpend(remaining))
			fmt.Fprintf(os.Stderr, "Run `exa-sheets session fill %s` to continue.\n", res.Session.ID)
		}
		return eris.Wrap(err, "session sample")
	},
}

// -- session fill --

var sessionFillCmd = &cobra.Command{
	Use:   "fill <session-id>",
	Short: "Fill every row that still has unwritten cells",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		concurrency, _ := cmd.Flags().GetInt("concurrency")

		env, err := initSessionEnv(ctx, true, concurrency)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		res, err := env.manager.FillRemaining(ctx, args[0])
		if res != nil {
			fillReport(os.Stderr, res, env.bar.Written(), env.bar.Unavailable())
		}
		return eris.Wrap(err, "session fill")
	},
}

// -- session show --

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the current output of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		limit, _ := cmd.Flags().GetInt("limit")

		env, err := initSessionEnv(ctx, false, 0)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		sess, err := env.manager.Get(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "session show")
		}
		return writeSession(cmd.OutOrStdout(), sess, format, limit)
	},
}

// -- session export --

var sessionExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Write the current output of a session to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		output, _ := cmd.Flags().GetString("output")

		env, err := initSessionEnv(ctx, false, 0)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		sess, err := env.manager.Get(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "session export")
		}
		if err := sheetio.Write(output, sess.Output); err != nil {
			return eris.Wrap(err, "session export")
		}

		if pending := len(sess.Output.Pending()); pending > 0 {
			fmt.Fprintf(os.Stderr, "Warning: %d rows are not fully filled.\n", pending)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", output)
		return nil
	},
}

// -- session list --

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		name, _ := cmd.Flags().GetString("name")
		limit, _ := cmd.Flags().GetInt("limit")

		env, err := initSessionEnv(ctx, false, 0)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		list, err := env.manager.List(ctx, store.SessionFilter{Name: name, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "session list")
		}

		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No sessions found.")
			return nil
		}

		formatSessionList(cmd.OutOrStdout(), list)
		return nil
	},
}

// -- session reset --

var sessionResetCmd = &cobra.Command{
	Use:   "reset <session-id>",
	Short: "Discard every written cell of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSessionEnv(ctx, false, 0)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		return eris.Wrap(env.manager.Reset(ctx, args[0]), "session reset")
	},
}

// -- session delete --

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its cells",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSessionEnv(ctx, false, 0)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		return eris.Wrap(env.manager.Delete(ctx, args[0]), "session delete")
	},
}

func init() {
	sessionStartCmd.Flags().StringP("input", "i", "", "input sheet (.xlsx or .csv)")
	sessionStartCmd.Flags().String("name", "", "session name (defaults to the input path)")
	_ = sessionStartCmd.MarkFlagRequired("input")

	sessionSampleCmd.Flags().Int("rows", 0, "rows to sample (0 uses fill.sample_rows)")
	sessionSampleCmd.Flags().Int("concurrency", 0, "parallel questions (0 uses fill.concurrency)")
	sessionFillCmd.Flags().Int("concurrency", 0, "parallel questions (0 uses fill.concurrency)")

	sessionShowCmd.Flags().String("format", "table", "output format (table, json, yaml)")
	sessionShowCmd.Flags().Int("limit", 0, "max rows to print (0 prints all)")

	sessionExportCmd.Flags().StringP("output", "o", "output.xlsx", "output sheet (.xlsx or .csv)")

	sessionListCmd.Flags().String("name", "", "filter by session name")
	sessionListCmd.Flags().Int("limit", 50, "max number of sessions to display")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionSampleCmd)
	sessionCmd.AddCommand(sessionFillCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionExportCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionResetCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}
