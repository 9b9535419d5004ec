package main

import (
	"fmt"
	"strings"

	"github.com/mark3labs/sidekick/internal/catalog"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models [name]",
	Short: "List known models or look one up",
	Long: `List the model catalog, or resolve a single model by id, alias, or
provider/id reference.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		m := catalog.Lookup(args[0])
		if m == nil {
			return fmt.Errorf("unknown model: %s", args[0])
		}
		fmt.Printf("%s\n", titleStyle.Render(m.DisplayName))
		fmt.Printf("  ref:            %s\n", m.Ref())
		fmt.Printf("  context window: %d\n", m.ContextWindow)
		fmt.Printf("  max output:     %d\n", m.MaxOutput)
		fmt.Printf("  tools:          %t\n", m.SupportsTools)
		if len(m.Aliases) > 0 {
			fmt.Printf("  aliases:        %s\n", strings.Join(m.Aliases, ", "))
		}
		return nil
	}

	for _, provider := range catalog.Providers() {
		fmt.Println(titleStyle.Render(provider))
		for _, m := range catalog.List() {
			if m.Provider != provider {
				continue
			}
			fmt.Printf("  %-40s %s\n", m.Ref(), dimStyle.Render(m.DisplayName))
		}
	}
	return nil
}
