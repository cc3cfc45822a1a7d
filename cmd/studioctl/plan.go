package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"eagle-studio/internal/prompt"
	"eagle-studio/internal/schema"
	"eagle-studio/internal/workflow"
)

var planCfg = workflow.DefaultPlanConfig()

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the listing slots a plan configuration produces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printPlan(cmd.OutOrStdout(), planCfg)
	},
}

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "List the plot film styles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, s := range prompt.Styles() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-22s %s\n", s.Key, s.Name)
		}
		return nil
	},
}

func init() {
	planCmd.Flags().IntVar(&planCfg.Main, "main", planCfg.Main, "main image slots")
	planCmd.Flags().IntVar(&planCfg.Secondary, "secondary", planCfg.Secondary, "secondary image slots")
	planCmd.Flags().IntVar(&planCfg.APlus, "aplus", planCfg.APlus, "A+ content slots")
	planCmd.Flags().StringVar(&planCfg.GallerySize, "gallery-size", planCfg.GallerySize, "gallery slot size")
	planCmd.Flags().StringVar(&planCfg.APlusSize, "aplus-size", planCfg.APlusSize, "A+ slot size")

	rootCmd.AddCommand(planCmd, stylesCmd)
}

func printPlan(w io.Writer, cfg workflow.PlanConfig) error {
	if err := schema.Struct("plan", cfg); err != nil {
		return err
	}
	plan := workflow.NewAmazonPlan(cfg)
	for _, slot := range plan {
		aspect := prompt.AspectForSize(slot.Size)
		if _, err := fmt.Fprintf(w, "%-8s %-10s %-10s %s\n", slot.ID, slot.Type, slot.Size, aspect); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d slots\n", len(plan))
	return err
}
