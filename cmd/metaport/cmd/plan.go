package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/metaport/internal/config"
	"github.com/dbsmedya/metaport/internal/graph"
	"github.com/dbsmedya/metaport/internal/schema"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the entity processing order",
	Long: `Plan resolves the dependency graph for the configured entity kinds and
displays the order in which import will process them, along with each
kind's dependencies.

Example:
  metaport plan --config metaport.yaml`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	reg := schema.Default()
	kinds := configuredKinds(cfg, reg)

	order, err := graph.Order(reg, kinds)
	if err != nil {
		return fmt.Errorf("failed to resolve processing order: %w", err)
	}

	fmt.Fprintln(outputWriter, "Processing order:")
	for i, kind := range order {
		refs, _ := reg.ReferencesOf(kind)
		if len(refs) == 0 {
			fmt.Fprintf(outputWriter, "  %2d. %s\n", i+1, kind)
			continue
		}
		names := make([]string, len(refs))
		for j, ref := range refs {
			names[j] = string(ref)
		}
		fmt.Fprintf(outputWriter, "  %2d. %s (needs %s)\n", i+1, kind, strings.Join(names, ", "))
	}
	return nil
}

// configuredKinds maps the entities.* block to kinds, everything when the
// block is empty.
func configuredKinds(cfg *config.Config, reg *schema.Registry) []schema.Kind {
	names := cfg.EnabledEntities()
	if len(names) == 0 {
		return reg.AllKinds()
	}
	kinds := make([]schema.Kind, 0, len(names))
	for _, name := range names {
		kinds = append(kinds, schema.Kind(name))
	}
	return kinds
}
