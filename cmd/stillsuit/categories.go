package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/stillsuit/internal/cli"
	"github.com/Veraticus/stillsuit/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"categories"},
		Short:   "Manage categories",
	}
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(listCategoriesCmd())
	return cmd
}

func addCategoryCmd() *cobra.Command {
	var id, icon, color string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create or rename a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := strings.TrimSpace(args[0])
			categoryID := id
			if categoryID == "" {
				categoryID = slugify(name)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			c := model.Category{ID: categoryID, Name: name, Icon: icon, ColorHex: color}
			if err := store.SaveCategory(ctx, &c); err != nil {
				return fmt.Errorf("failed to save category: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Saved category %s (%s)", name, categoryID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Category ID (default: derived from the name)")
	cmd.Flags().StringVar(&icon, "icon", "", "Icon")
	cmd.Flags().StringVar(&color, "color", "", "Color hex")
	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.ListCategories(ctx)
			if err != nil {
				return err
			}
			if len(categories) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No categories found."))
				return nil
			}

			rows := make([][]string, 0, len(categories))
			for _, c := range categories {
				rows = append(rows, []string{c.ID, c.Icon + " " + c.Name, c.ColorHex})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"ID", "NAME", "COLOR"}, rows))
			return nil
		},
	}
}

// slugify lower-cases name and joins its words with dashes.
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
