package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/ingest"
	"github.com/david/feedback-triage/internal/products"
	"github.com/david/feedback-triage/internal/scoring"
	"github.com/david/feedback-triage/internal/seed"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import feedback from a CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		mapping := ingest.Mapping{}
		mapping.TitleColumn, _ = cmd.Flags().GetString("title-column")
		mapping.DescriptionColumn, _ = cmd.Flags().GetString("description-column")
		mapping.DateColumn, _ = cmd.Flags().GetString("date-column")
		if raw, _ := cmd.Flags().GetString("product"); strings.TrimSpace(raw) != "" {
			id, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("invalid --product: %w", err)
			}
			mapping.ProductID = &id
		}

		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()

		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		rec, err := ingest.NewImporter(store, log, cfg.ImportChunkSize).Import(ctx, filepath.Base(file), f, mapping)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows (%d skipped) as %s\n", rec.RowCount, rec.SkippedCount, rec.ID)
		return nil
	},
}

var rankingCmd = &cobra.Command{
	Use:   "ranking",
	Short: "Print opportunities or features ordered by combined score",
	RunE: func(cmd *cobra.Command, args []string) error {
		entity, _ := cmd.Flags().GetString("entity")
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		dims, err := store.ListDimensions(ctx)
		if err != nil {
			return err
		}
		maxScore := scoring.MaxPossibleScore(dims)

		var rows []rankRow
		switch entity {
		case "opportunities":
			opps, err := store.ListOpportunities(ctx, db.OpportunityFilter{})
			if err != nil {
				return err
			}
			scoring.AnnotateOpportunities(opps, dims)
			scoring.SortOpportunitiesByScore(opps)
			for _, o := range opps {
				horizon := ""
				if o.Horizon != nil {
					horizon = string(*o.Horizon)
				}
				rows = append(rows, rankRow{Title: o.Title, Score: o.CombinedScore, Feedback: o.FeedbackCount, Horizon: horizon, Status: string(o.Status)})
			}
		case "features":
			features, err := store.ListFeatures(ctx)
			if err != nil {
				return err
			}
			scoring.AnnotateFeatures(features, dims)
			scoring.SortFeaturesByScore(features)
			for _, f := range features {
				rows = append(rows, rankRow{Title: f.Title, Score: f.CombinedScore})
			}
		default:
			return fmt.Errorf("unknown --entity %q (opportunities|features)", entity)
		}

		renderRanking(cmd.OutOrStdout(), rows, maxScore)
		return nil
	},
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Print the product tree with rolled-up feedback counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		flat, err := store.ListProducts(ctx)
		if err != nil {
			return err
		}
		counts, err := store.ProductCounts(ctx)
		if err != nil {
			return err
		}
		renderProductTree(cmd.OutOrStdout(), products.BuildTree(flat), products.Rollup(flat, counts))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed-dimensions",
	Short: "Create scoring dimensions from a YAML file (built-in defaults when omitted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		dims, err := seed.LoadDimensions(file)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		created, skipped, err := seed.Apply(ctx, store, dims)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %d dimensions, %d already present\n", created, skipped)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print global counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		renderStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check link, score and hierarchy consistency",
	RunE: func(cmd *cobra.Command, args []string) error {
		fix, _ := cmd.Flags().GetBool("fix")
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		rep, err := store.CheckIntegrity(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "reviewed feedback without links: %d\n", rep.ReviewedWithoutLinks)
		fmt.Fprintf(out, "entities scored on deleted dimensions: %d (ignored by scoring)\n", rep.StaleScoreEntities)
		fmt.Fprintf(out, "products on a parent cycle: %d %v\n", len(rep.ProductsOnCycle), rep.ProductsOnCycle)

		if fix && rep.ReviewedWithoutLinks > 0 {
			n, err := store.RevertUnlinkedReviewed(ctx)
			if err != nil {
				return err
			}
			log.Info("reverted unlinked reviewed feedback", "count", n)
			fmt.Fprintf(out, "reverted %d items to new\n", n)
			return nil
		}
		if !rep.Clean() {
			return fmt.Errorf("integrity check failed")
		}
		return nil
	},
}

func init() {
	importCmd.Flags().String("file", "", "CSV file to import")
	importCmd.Flags().String("title-column", "", "Header of the title column")
	importCmd.Flags().String("description-column", "", "Header of the description column")
	importCmd.Flags().String("date-column", "", "Header of the date column")
	importCmd.Flags().String("product", "", "Product id assigned to every imported row")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("title-column")

	rankingCmd.Flags().String("entity", "opportunities", "What to rank (opportunities|features)")

	seedCmd.Flags().String("file", "", "YAML dimension seed file")

	verifyCmd.Flags().Bool("fix", false, "Revert reviewed feedback without links to new")
}
