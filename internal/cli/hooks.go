package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/preload/internal/logger"
	"github.com/glorpus-work/preload/pkg/errors"
	"github.com/glorpus-work/preload/pkg/fsutil"
	"github.com/glorpus-work/preload/pkg/hooks"
)

// NewHooksCmd creates the hooks command with subcommands.
func NewHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Manage hook scripts",
		Long: `Inspect and scaffold Tengo scripts that run on preloader events.

Hooks are read from <event>.tengo files in the hooks directory and from the
hooks section of the configuration file. Configured hooks take precedence.`,
	}

	cmd.AddCommand(
		newHooksListCmd(),
		newHooksTemplateCmd(),
	)

	return cmd
}

func newHooksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List hook events and their scripts",
		Args:  cobra.NoArgs,
		RunE:  runHooksList,
	}
}

func newHooksTemplateCmd() *cobra.Command {
	var write, force bool

	cmd := &cobra.Command{
		Use:       "template EVENT",
		Short:     "Print a starter script for EVENT",
		Args:      cobra.ExactArgs(1),
		ValidArgs: eventNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHooksTemplate(cmd, args[0], write, force)
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the template into the hooks directory")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing hook file")

	return cmd
}

func runHooksList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := fsutil.GetHooksDir()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(w, "EVENT\tSOURCE")
	_, _ = fmt.Fprintln(w, "-----\t------")
	for _, e := range hooks.Events() {
		source := "-"
		hookFile := filepath.Join(dir, string(e)+hooks.HookFileExtension)
		if _, ok := cfg.Hooks[string(e)]; ok {
			source = "config"
		} else if _, err := os.Stat(hookFile); err == nil {
			source = hookFile
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", e, source)
	}
	return w.Flush()
}

func runHooksTemplate(cmd *cobra.Command, name string, write, force bool) error {
	event, err := hooks.ParseEvent(name)
	if err != nil {
		return err
	}
	tmpl := hooks.Template(event) + "\n"

	if !write {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), tmpl)
		return nil
	}

	dir, err := fsutil.GetHooksDir()
	if err != nil {
		return err
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		return err
	}
	hookFile := filepath.Join(dir, string(event)+hooks.HookFileExtension)
	if _, err := os.Stat(hookFile); err == nil && !force {
		return fmt.Errorf("hook file %s already exists (use --force to overwrite)", hookFile)
	}
	if err := os.WriteFile(hookFile, []byte(tmpl), fsutil.FileModeDefault); err != nil {
		return errors.Wrapf(err, "failed to write hook file %s", hookFile)
	}

	logger.Success("Hook template written", logger.Fields{"path": hookFile})
	return nil
}

func eventNames() []string {
	events := hooks.Events()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = string(e)
	}
	return names
}
