package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/nigersavoir/savoir-client/internal/api"
	"github.com/nigersavoir/savoir-client/internal/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newBooksCmd(a *app) *cobra.Command {
	var filter api.BookFilter

	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse the marketplace catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			books, err := a.client.ListBooks(ctx, filter)
			if err != nil {
				return err
			}

			ids := make([]int64, 0, len(books))
			for _, b := range books {
				ids = append(ids, b.ID)
			}
			syncer := a.reactions(api.KindBook, nil)
			if err := syncer.Seed(ctx, ids); err != nil {
				a.logger.Warn("reaction summary unavailable", zap.Error(err))
			}
			tallies := syncer.Snapshot()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tPRICE\tSTOCK\tLIKES\tDISLIKES")
			for _, b := range books {
				t := tallies[b.ID]
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.0f\t%d\t%d\t%d\n", b.ID, b.Title, b.Author, b.Price, b.Stock, t.PositiveCount, t.NegativeCount)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "search title and author")
	cmd.Flags().StringVar(&filter.Subject, "subject", "", "subject")
	cmd.Flags().StringVar(&filter.Level, "level", "", "level")
	cmd.Flags().Int64Var(&filter.SchoolID, "school", 0, "school id")
	return cmd
}

func newDocumentsCmd(a *app) *cobra.Command {
	var filter api.DocumentFilter

	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Search shared documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			docs, err := a.client.SearchDocuments(ctx, filter)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSUBJECT\tLEVEL\tTYPE\tYEAR")
			for _, d := range docs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", d.ID, d.Title, d.Subject, d.Level, d.Type, d.Year)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.Subject, "subject", "", "subject")
	cmd.Flags().StringVar(&filter.Level, "level", "", "level")
	cmd.Flags().StringVar(&filter.Type, "type", "", "document type (BACCALAUREAT, DEVOIR, ...)")
	cmd.Flags().StringVar(&filter.Year, "year", "", "year")
	cmd.Flags().StringVar(&filter.Region, "region", "", "region")
	cmd.Flags().Int64Var(&filter.SchoolID, "school", 0, "school id")
	return cmd
}

func newDownloadCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download <document-id>",
		Short: "Download a document file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			d, err := a.client.DownloadDocument(ctx, id)
			if err != nil {
				return err
			}

			name := filepath.Base(d.Filename)
			if name == "." || name == "/" || name == "" {
				name = fmt.Sprintf("document-%d", id)
			}
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, d.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", path, len(d.Data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "o", ".", "output directory")
	return cmd
}

func newUploadCmd(a *app) *cobra.Command {
	var up api.DocumentUpload

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Share a document file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			if !a.sessions.IsAuthenticated(ctx) {
				return fmt.Errorf("%w: run savoirctl login first", domain.ErrAuthenticationRequired)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			up.Filename = filepath.Base(args[0])
			up.Content = f

			doc, err := a.client.UploadDocument(ctx, up)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded document %d: %s (%s)\n", doc.ID, doc.Title, doc.Format)
			return nil
		},
	}
	cmd.Flags().StringVar(&up.Title, "title", "", "document title")
	cmd.Flags().StringVar(&up.Description, "description", "", "short description")
	cmd.Flags().StringVar(&up.Subject, "subject", "", "subject")
	cmd.Flags().StringVar(&up.Level, "level", "", "level")
	cmd.Flags().StringVar(&up.Type, "type", "", "document type (BACCALAUREAT, DEVOIR, ...)")
	cmd.Flags().StringVar(&up.Year, "year", "", "year")
	cmd.Flags().Int64Var(&up.SchoolID, "school", 0, "school id")
	for _, name := range []string{"title", "subject", "level", "type", "year"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}
