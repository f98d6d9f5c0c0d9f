package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/spf13/cobra"

	"github.com/wegman-software/osm-extract-go/internal/logger"
	"github.com/wegman-software/osm-extract-go/internal/region"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Inspect and validate regions configuration",
}

var regionsValidateCmd = &cobra.Command{
	Use:   "validate <regions.yaml>",
	Short: "Load a regions file and report any structural errors",
	Args:  cobra.ExactArgs(1),
	Run:   runRegionsValidate,
}

func init() {
	rootCmd.AddCommand(regionsCmd)
	regionsCmd.AddCommand(regionsValidateCmd)
}

func runRegionsValidate(cmd *cobra.Command, args []string) {
	log := logger.Get()

	specs, err := region.Load(args[0])
	if err != nil {
		exitWithError("regions file is invalid", err)
	}

	for _, spec := range specs {
		if _, err := spec.Predicate(); err != nil {
			exitWithError(fmt.Sprintf("region %q has an invalid geometry source", spec.Name), err)
		}
	}

	log.Info("regions file is valid", zap.Int("regions", len(specs)))
	fmt.Printf("%d region(s) OK\n", len(specs))
}
