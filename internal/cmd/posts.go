package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/postlens/postlens/internal/config"
	"github.com/postlens/postlens/internal/store"
)

var postsListJSON bool

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Inspect stored posts",
}

var postsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		posts, err := db.ListPosts(cmd.Context())
		if err != nil {
			return err
		}

		if postsListJSON {
			payload, err := json.MarshalIndent(posts, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(os.Stdout, string(payload))
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"ID", "Title", "Published", "Rating"})
		for _, post := range posts {
			rating := "-"
			if post.Rating != nil {
				rating = fmt.Sprintf("%d", *post.Rating)
			}
			t.AppendRow(table.Row{post.ID, post.Title, post.Published, rating})
		}
		t.Render()
		return nil
	},
}

func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func init() {
	postsListCmd.Flags().BoolVar(&postsListJSON, "json", false, "emit JSON instead of a table")
	postsCmd.AddCommand(postsListCmd)
	rootCmd.AddCommand(postsCmd)
}
