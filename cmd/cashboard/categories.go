package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/cashboard/cashboard/internal/model"
	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage transaction categories",
		Long:  `List, add, and delete the categories used for transaction classification.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "ID\tNAME\tMONTHLY BUDGET")
			for _, cat := range categories {
				budget := "-"
				if cat.MonthlyBudget != nil {
					budget = strconv.FormatFloat(*cat.MonthlyBudget, 'f', 2, 64)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", cat.ID, cat.Name, budget)
			}

			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var monthlyBudget float64

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			category := &model.Category{Name: args[0]}
			if cmd.Flags().Changed("budget") {
				category.MonthlyBudget = &monthlyBudget
			}

			id, err := store.CreateCategory(ctx, category)
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Printf("Created category %q (id %d)\n", category.Name, id)
			return nil
		},
	}

	cmd.Flags().Float64Var(&monthlyBudget, "budget", 0, "monthly budget for the category")

	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Long: `Delete a category by id. Transactions assigned to it fall back
to Uncategorized. The Uncategorized category itself cannot be deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid category id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteCategory(ctx, id); err != nil {
				return fmt.Errorf("failed to delete category: %w", err)
			}

			fmt.Printf("Deleted category %d\n", id)
			return nil
		},
	}
}
