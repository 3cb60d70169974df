package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"library-storefront/gateway"
)

func pagingFlags(cmd *cobra.Command, p *gateway.Paging) {
	cmd.Flags().IntVar(&p.Page, "page", 0, "Page number")
	cmd.Flags().IntVar(&p.Limit, "limit", 0, "Results per page")
}

func (a *app) booksCmd() *cobra.Command {
	books := &cobra.Command{Use: "books", Short: "Browse the catalog"}

	var f gateway.BookFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.mgr.Books(cmd.Context(), f)
			if err != nil {
				return err
			}
			printBooks(a.out, res.Data.Items)
			pageFooter(a.out, res.Data.Page, res.Data.TotalPages, res.Data.Total)
			staleNote(a.out, res.Stale)
			return nil
		},
	}
	pagingFlags(list, &f.Paging)
	list.Flags().Int64Var(&f.CategoryID, "category", 0, "Only books in this category id")
	list.Flags().Int64Var(&f.AuthorID, "author", 0, "Only books by this author id")
	list.Flags().StringVar(&f.Sort, "sort", "", "Sort order, e.g. title or -rating")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := a.mgr.Book(cmd.Context(), id)
			if err != nil {
				return err
			}
			printBook(a.out, res.Data)
			return nil
		},
	}

	var sp gateway.Paging
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search books by title or author",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.Join(args, " ")
			res, err := a.mgr.Search(cmd.Context(), q, sp)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Found %d book(s) matching '%s':\n", res.Data.Total, strings.TrimSpace(q))
			printBooks(a.out, res.Data.Items)
			pageFooter(a.out, res.Data.Page, res.Data.TotalPages, res.Data.Total)
			return nil
		},
	}
	pagingFlags(search, &sp)

	var (
		by    string
		limit int
	)
	recommend := &cobra.Command{
		Use:   "recommend",
		Short: "Show recommended books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.mgr.Recommend(cmd.Context(), gateway.Recommendation(by), limit)
			if err != nil {
				return err
			}
			printBooks(a.out, res.Data)
			return nil
		},
	}
	recommend.Flags().StringVar(&by, "by", string(gateway.ByPopular), "popular or rating")
	recommend.Flags().IntVar(&limit, "limit", 10, "Number of books")

	var cartAdd bool
	borrow := &cobra.Command{
		Use:   "borrow <id>",
		Short: "Put a book in the cart for checkout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if cartAdd {
				item, err := a.mgr.AddToCart(cmd.Context(), id)
				if err != nil {
					return err
				}
				a.notifier.Success("Added '%s' to your cart (quantity %d)", item.Book.Title, item.Quantity)
				return nil
			}
			if err := a.mgr.BorrowNow(cmd.Context(), id); err != nil {
				return err
			}
			a.notifier.Info("Book is in your cart. Run 'library checkout --agree' to borrow it.")
			return nil
		},
	}
	borrow.Flags().BoolVar(&cartAdd, "add", false, "Add another copy even if the book is already in the cart")

	books.AddCommand(list, show, search, recommend, borrow)
	return books
}

func (a *app) authorsCmd() *cobra.Command {
	authors := &cobra.Command{Use: "authors", Short: "Browse authors"}

	var p gateway.Paging
	list := &cobra.Command{
		Use:   "list",
		Short: "List authors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.mgr.Authors(cmd.Context(), p)
			if err != nil {
				return err
			}
			printAuthors(a.out, res.Data.Items)
			pageFooter(a.out, res.Data.Page, res.Data.TotalPages, res.Data.Total)
			staleNote(a.out, res.Stale)
			return nil
		},
	}
	pagingFlags(list, &p)

	var bp gateway.Paging
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an author and their books",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			author, err := a.mgr.Author(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\n", author.Data.Name)
			if author.Data.Bio != "" {
				fmt.Fprintf(a.out, "%s\n", author.Data.Bio)
			}
			fmt.Fprintln(a.out)
			books, err := a.mgr.AuthorBooks(cmd.Context(), id, bp)
			if err != nil {
				return err
			}
			printBooks(a.out, books.Data.Items)
			pageFooter(a.out, books.Data.Page, books.Data.TotalPages, books.Data.Total)
			return nil
		},
	}
	pagingFlags(show, &bp)

	authors.AddCommand(list, show)
	return authors
}

func (a *app) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.mgr.Categories(cmd.Context())
			if err != nil {
				return err
			}
			printCategories(a.out, res.Data)
			staleNote(a.out, res.Stale)
			return nil
		},
	}
}
