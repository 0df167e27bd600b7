package cli

import (
	"fmt"
	"io"
	"strings"

	"appaudit/internal/flags"
	"appaudit/internal/rules"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	rulesListQuiet    bool
	rulesListCategory string
	rulesListCI       bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the built-in audit rules",
	Long: `Inspect the audit rules compiled into appaudit.

Every rule belongs to one report card category (Security, Performance or
Reliability), may be limited to some host environments, and may be skipped in
CI mode. Those defaults can be overridden per rule with the "environments"
and "run_in_ci" options (see "appaudit audit --help", --set).
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit rules",
	Long: `List audit rules sorted by ID, with their category, environments, CI
eligibility and options.

Examples:
  appaudit rules list
  appaudit rules list --category security
  appaudit rules list --ci -q     # IDs of the rules a CI audit runs
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		for _, r := range filterRules(rules.List(), rulesListCategory, rulesListCI) {
			if rulesListQuiet {
				fmt.Fprintln(w, r.ID())
				continue
			}
			printRule(w, r)
		}
		return nil
	},
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <rule-id>",
	Short: "Show one audit rule",
	Long: `Show the category, environments, CI eligibility and options of one rule.

Examples:
  appaudit rules show cache-prefix
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rList, err := rules.Resolve(args)
		if err != nil {
			return err
		}
		printRule(cmd.OutOrStdout(), rList[0])
		return nil
	},
}

// filterRules keeps the rules in category (case-insensitive; empty keeps all)
// and, when ciOnly is set, the rules a --ci audit runs.
func filterRules(list []rules.Rule, category string, ciOnly bool) []rules.Rule {
	category = strings.TrimSpace(category)
	out := list[:0:0]
	for _, r := range list {
		if category != "" && !strings.EqualFold(string(r.Category()), category) {
			continue
		}
		if ciOnly && !r.RunInCI() {
			continue
		}
		out = append(out, r)
	}
	return out
}

func printRule(w io.Writer, r rules.Rule) {
	const rule = "----------------------------------------"
	fmt.Fprintln(w, rule)
	color.New(color.Bold).Fprintf(w, "RULE: %s\n", r.ID())
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, r.Title())
	fmt.Fprintln(w, r.Description())

	envs := "all"
	if e := r.Environments(); len(e) > 0 {
		envs = strings.Join(e, ", ")
	}
	ci := "yes"
	if !r.RunInCI() {
		ci = "no"
	}
	fmt.Fprintf(w, "Category:     %s\n", r.Category())
	fmt.Fprintf(w, "Environments: %s\n", envs)
	fmt.Fprintf(w, "Runs in CI:   %s\n", ci)

	if cr, ok := r.(rules.ConfigurableRule); ok && len(cr.Options()) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Options:")
		for _, opt := range cr.Options() {
			def := opt.Default
			if def == "" {
				def = `""`
			}
			fmt.Fprintf(w, "  %s\n", opt.Name)
			fmt.Fprintf(w, "    Description: %s\n", opt.Description)
			fmt.Fprintf(w, "    Default:     %s\n", def)
		}
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesListCmd.Flags().BoolVarP(&rulesListQuiet, "quiet", "q", false, "Only print rule IDs")
	rulesListCmd.Flags().StringVar(&rulesListCategory, "category", "", "Only list rules in this category (security, performance, reliability)")
	rulesListCmd.Flags().BoolVar(&rulesListCI, flags.FlagCI, false, "Only list rules that run in CI mode")
	rulesCmd.AddCommand(rulesShowCmd)
}
