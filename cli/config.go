package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/socialflow/config"
)

func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write configuration",
		Long: `Read and write socialflow configuration.

Values resolve from, highest priority first: flags, SOCIALFLOW_* environment
variables, .socialflow.yaml in the git root, ~/.config/socialflow/config.yaml
and built-in defaults. Credentials may only be set globally.`,
	}
	cmd.AddCommand(
		newConfigGetCommand(app),
		newConfigSetCommand(app),
		newConfigUnsetCommand(app),
	)
	return cmd
}

func newConfigGetCommand(app *App) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Show one key or every key with its source",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				k, ok := config.LookupKey(args[0])
				if !ok {
					return fmt.Errorf("unknown config key %q", args[0])
				}
				fmt.Fprintln(w, displayValue(k, app.resolved.Get(k.Name), reveal))
				return nil
			}
			listConfig(w, app.styles, app.resolved, reveal)
			if app.loadErr != nil {
				fmt.Fprintf(w, "\n%s\n%v\n", app.styles.bad.Render("Invalid values:"), app.loadErr)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print credentials instead of masking them")
	return cmd
}

func newConfigSetCommand(app *App) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a key in the global (or local) config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			saver := config.NewSaver(app.resolver)
			path := saver.GlobalPath
			save := saver.SaveGlobal
			if local {
				path = saver.LocalPath
				save = saver.SaveLocal
			}
			if err := save(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "write .socialflow.yaml in the git root")
	return cmd
}

func newConfigUnsetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a key from the global config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			saver := config.NewSaver(app.resolver)
			if err := saver.DeleteGlobalKey(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[0], saver.GlobalPath)
			return nil
		},
	}
}

func listConfig(w io.Writer, st styles, c *config.Resolved, reveal bool) {
	for _, k := range config.Keys() {
		v, src := c.GetWithSource(k.Name)
		fmt.Fprintf(w, "%-24s %-30s %s\n", k.Name, displayValue(k, v, reveal), st.faint.Render(string(src)))
	}
}

func displayValue(k config.Key, v string, reveal bool) string {
	switch {
	case v == "":
		return "-"
	case k.Secret() && !reveal:
		return "********"
	}
	return v
}
