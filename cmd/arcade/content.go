package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/terra-clan/pylearn-arcade/internal/content"
	"github.com/terra-clan/pylearn-arcade/internal/models"
	"github.com/terra-clan/pylearn-arcade/internal/session"
)

var contentDir string

var (
	contentCmd = &cobra.Command{
		Use:   "content",
		Short: "Work with activity packs",
	}
	contentValidateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Check that every activity in the packs is playable",
		Args:  cobra.NoArgs,
		RunE:  runContentValidate,
	}
)

func init() {
	defaultDir := os.Getenv("CONTENT_DIR")
	if defaultDir == "" {
		defaultDir = "./content"
	}
	contentValidateCmd.Flags().StringVar(&contentDir, "dir", defaultDir, "activity pack directory")
	contentCmd.AddCommand(contentValidateCmd)
}

func runContentValidate(cmd *cobra.Command, args []string) error {
	loader := content.NewLoader()
	if err := loader.LoadFromDir(contentDir); err != nil {
		return err
	}

	failed := validateActivities(cmd.OutOrStdout(), loader.List(models.ActivityFilters{}))
	if failed > 0 {
		return fmt.Errorf("%d activities are not playable", failed)
	}
	return nil
}

// validateActivities reports one line per activity and returns how many
// failed.
func validateActivities(w io.Writer, activities []*models.Activity) int {
	failed := 0
	for _, a := range activities {
		if err := session.Check(a); err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s (%s): %v\n", a.Slug, a.Type, err)
			continue
		}
		fmt.Fprintf(w, "ok   %s (%s)\n", a.Slug, a.Type)
	}
	fmt.Fprintf(w, "%d activities, %d failed\n", len(activities), failed)
	return failed
}
