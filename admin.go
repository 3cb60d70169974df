package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"library-storefront/gateway"
	"library-storefront/library"
)

func (a *app) adminCmd() *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Manage the catalog, loans and users (administrators only)",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.start(cmd); err != nil {
				return err
			}
			return a.requireLogin()
		},
	}

	overview := &cobra.Command{
		Use:   "overview",
		Short: "Show library totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.mgr.Overview(cmd.Context())
			if err != nil {
				return err
			}
			printOverview(a.out, res.Data)
			return nil
		},
	}

	admin.AddCommand(overview, a.adminBooksCmd(), a.adminAuthorsCmd(), a.adminCategoriesCmd(), a.adminLoansCmd(), a.adminUsersCmd())
	return admin
}

func (a *app) deleteCmd(what string, del func(cmd *cobra.Command, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + what,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := del(cmd, id); err != nil {
				return err
			}
			a.notifier.Success("Deleted %s %d", what, id)
			return nil
		},
	}
}

func bookInputFlags(cmd *cobra.Command, in *gateway.BookInput) {
	cmd.Flags().StringVar(&in.Title, "title", "", "Title")
	cmd.Flags().Int64Var(&in.AuthorID, "author", 0, "Author id")
	cmd.Flags().Int64Var(&in.CategoryID, "category", 0, "Category id")
	cmd.Flags().StringVar(&in.ISBN, "isbn", "", "ISBN")
	cmd.Flags().IntVar(&in.PublishedYear, "year", 0, "Year of publication")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.Flags().StringVar(&in.CoverURL, "cover", "", "Cover image URL")
	cmd.Flags().IntVar(&in.Stock, "stock", 1, "Copies in stock")
}

func (a *app) adminBooksCmd() *cobra.Command {
	books := &cobra.Command{Use: "books", Short: "Manage books"}

	var in gateway.BookInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Add a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.mgr.CreateBook(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.notifier.Success("Added book '%s' (ID %d)", b.Title, b.ID)
			return nil
		},
	}
	bookInputFlags(create, &in)

	var up gateway.BookInput
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a book's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			b, err := a.mgr.UpdateBook(cmd.Context(), id, up)
			if err != nil {
				return err
			}
			a.notifier.Success("Updated book '%s'", b.Title)
			return nil
		},
	}
	bookInputFlags(update, &up)

	books.AddCommand(create, update, a.deleteCmd("book", func(cmd *cobra.Command, id int64) error {
		return a.mgr.DeleteBook(cmd.Context(), id)
	}))
	return books
}

func (a *app) adminAuthorsCmd() *cobra.Command {
	authors := &cobra.Command{Use: "authors", Short: "Manage authors"}

	var in gateway.AuthorInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Add an author",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			au, err := a.mgr.CreateAuthor(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.notifier.Success("Added author '%s' (ID %d)", au.Name, au.ID)
			return nil
		},
	}
	create.Flags().StringVar(&in.Name, "name", "", "Name")
	create.Flags().StringVar(&in.Bio, "bio", "", "Short biography")

	var up gateway.AuthorInput
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			au, err := a.mgr.UpdateAuthor(cmd.Context(), id, up)
			if err != nil {
				return err
			}
			a.notifier.Success("Updated author '%s'", au.Name)
			return nil
		},
	}
	update.Flags().StringVar(&up.Name, "name", "", "Name")
	update.Flags().StringVar(&up.Bio, "bio", "", "Short biography")

	authors.AddCommand(create, update, a.deleteCmd("author", func(cmd *cobra.Command, id int64) error {
		return a.mgr.DeleteAuthor(cmd.Context(), id)
	}))
	return authors
}

func (a *app) adminCategoriesCmd() *cobra.Command {
	categories := &cobra.Command{Use: "categories", Short: "Manage categories"}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Add a category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.mgr.CreateCategory(cmd.Context(), gateway.CategoryInput{Name: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			a.notifier.Success("Added category '%s' (ID %d)", c.Name, c.ID)
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a category",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := a.mgr.UpdateCategory(cmd.Context(), id, gateway.CategoryInput{Name: strings.Join(args[1:], " ")})
			if err != nil {
				return err
			}
			a.notifier.Success("Renamed category %d to '%s'", c.ID, c.Name)
			return nil
		},
	}

	categories.AddCommand(create, rename, a.deleteCmd("category", func(cmd *cobra.Command, id int64) error {
		return a.mgr.DeleteCategory(cmd.Context(), id)
	}))
	return categories
}

func (a *app) adminLoansCmd() *cobra.Command {
	loans := &cobra.Command{Use: "loans", Short: "Manage loans"}

	var (
		f      gateway.LoanFilter
		status string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.Status = library.LoanStatus(strings.ToUpper(status))
			res, err := a.mgr.AdminLoans(cmd.Context(), f)
			if err != nil {
				return err
			}
			printLoans(a.out, res.Data.Items, time.Now())
			pageFooter(a.out, res.Data.Page, res.Data.TotalPages, res.Data.Total)
			return nil
		},
	}
	pagingFlags(list, &f.Paging)
	list.Flags().StringVar(&status, "status", "", "Only loans with this status")
	list.Flags().Int64Var(&f.UserID, "user", 0, "Only loans of this user id")

	set := &cobra.Command{
		Use:   "set-status <loan-id> <status>",
		Short: "Change a loan's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			loan, err := a.mgr.UpdateLoanStatus(cmd.Context(), id, library.LoanStatus(strings.ToUpper(args[1])))
			if err != nil {
				return err
			}
			a.notifier.Success("Loan %d is now %s", loan.ID, loan.Status)
			return nil
		},
	}

	loans.AddCommand(list, set)
	return loans
}

func (a *app) adminUsersCmd() *cobra.Command {
	users := &cobra.Command{Use: "users", Short: "Manage users"}

	var p gateway.Paging
	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.mgr.AdminUsers(cmd.Context(), p)
			if err != nil {
				return err
			}
			printUsers(a.out, res.Data.Items)
			pageFooter(a.out, res.Data.Page, res.Data.TotalPages, res.Data.Total)
			return nil
		},
	}
	pagingFlags(list, &p)

	var in gateway.UserUpdate
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a user's name or role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in.Role = strings.ToUpper(in.Role)
			u, err := a.mgr.UpdateUser(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			a.notifier.Success("Updated %s (%s)", u.Name, u.Role)
			return nil
		},
	}
	update.Flags().StringVar(&in.Name, "name", "", "New name")
	update.Flags().StringVar(&in.Role, "role", "", "USER or ADMIN")

	users.AddCommand(list, update, a.deleteCmd("user", func(cmd *cobra.Command, id int64) error {
		return a.mgr.DeleteUser(cmd.Context(), id)
	}))
	return users
}
