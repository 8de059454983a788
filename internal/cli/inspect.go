package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"kbmigrate/internal/data"
	"kbmigrate/internal/logger"
	"kbmigrate/internal/service"
	"kbmigrate/internal/title"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <story-id>",
	Short: "Print what the migration sees of one story",
	Long: `Loads a single story from the source database and prints its title,
the authors of its versions, its categories and its attachment filenames.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid story id %q: %w", args[0], err)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := a.source()
	if err != nil {
		return err
	}
	return inspectStory(cmd.Context(), cmd.OutOrStdout(), db, a.cfg.Source.ContainerType, id, a.log)
}

func inspectStory(ctx context.Context, w io.Writer, db *sqlx.DB, containerType string, id int64, log logger.Logger) error {
	pages := data.NewSQLPageRepository(db)
	page, err := pages.GetPageByID(ctx, id)
	if err != nil {
		return err
	}
	versions, err := pages.GetVersions(ctx, id)
	if err != nil {
		return err
	}
	users, err := service.NewUserResolver(ctx, data.NewUserRepository(db), log)
	if err != nil {
		return err
	}

	categories := data.NewCategoryRepository(db)
	all, err := categories.GetAll(ctx)
	if err != nil {
		return err
	}
	names := make(map[int64]string, len(all))
	for _, c := range all {
		names[c.ID] = c.Name
	}
	categoryIDs, err := categories.GetCategoryIDsForPage(ctx, id)
	if err != nil {
		return err
	}

	attachments, err := data.NewAttachmentRepository(db).GetVersionsByContainer(ctx, containerType, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Story %d: %s\n", page.ID, title.New(title.Main).Append(page.Name).Build())
	fmt.Fprintf(w, "Current version: %d\n", page.Version)
	fmt.Fprintln(w, "Versions:")
	for _, v := range versions {
		fmt.Fprintf(w, "  %d  %s  %s\n", v.Version, users.Name(data.Int(v.AuthorID)), data.Str(v.UpdatedOn))
	}
	fmt.Fprintln(w, "Categories:")
	for _, cid := range categoryIDs {
		name, ok := names[cid]
		if !ok {
			name = fmt.Sprintf("<unknown category %d>", cid)
		}
		fmt.Fprintf(w, "  %s\n", name)
	}
	fmt.Fprintln(w, "Attachments:")
	seen := make(map[int64]bool)
	var files []string
	for _, av := range attachments {
		if seen[av.AttachmentID] {
			continue
		}
		seen[av.AttachmentID] = true
		files = append(files, av.Filename)
	}
	if len(files) > 0 {
		fmt.Fprintf(w, "  %s\n", strings.Join(files, "\n  "))
	}
	return nil
}
