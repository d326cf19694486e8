package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/nigersavoir/savoir-client/internal/api"
	"github.com/nigersavoir/savoir-client/internal/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "react <book|document> <id> <like|dislike>",
		Short:     "Like or dislike a book or document",
		Long:      `Reacting again with the same reaction removes it.`,
		Args:      cobra.ExactArgs(3),
		ValidArgs: []string{"book", "document"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			r, err := domain.ParseReaction(args[2])
			if err != nil || r == domain.ReactionNone {
				return fmt.Errorf("unknown reaction %q (want like or dislike)", args[2])
			}

			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			syncer := a.reactions(kind, func(subjectID int64, err error) {
				fmt.Fprintf(out, "Reaction on %d was not saved and has been undone\n", subjectID)
			})

			if err := syncer.Seed(ctx, []int64{id}); err != nil {
				a.logger.Warn("reaction summary unavailable", zap.Int64("subject_id", id), zap.Error(err))
			}
			tally, err := syncer.Toggle(ctx, id, r)
			if errors.Is(err, domain.ErrAuthenticationRequired) {
				return fmt.Errorf("%w: run savoirctl login first", err)
			}
			if err != nil {
				return err
			}
			printTally(out, tally)
			return nil
		},
	}
}

func parseKind(raw string) (api.SubjectKind, error) {
	switch raw {
	case "book", "books":
		return api.KindBook, nil
	case "document", "documents", "doc":
		return api.KindDocument, nil
	}
	return "", fmt.Errorf("unknown subject %q (want book or document)", raw)
}

func printTally(w io.Writer, t domain.ReactionTally) {
	mine := "none"
	if t.ViewerReaction != domain.ReactionNone {
		mine = string(t.ViewerReaction)
	}
	fmt.Fprintf(w, "#%d likes=%d dislikes=%d mine=%s\n", t.SubjectID, t.PositiveCount, t.NegativeCount, mine)
}
