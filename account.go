package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"library-storefront/gateway"
)

func (a *app) loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to your library account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				fmt.Print("Email: ")
				if _, err := fmt.Scanln(&email); err != nil {
					return fmt.Errorf("failed to read email: %w", err)
				}
			}
			password, err := readPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			user, err := a.mgr.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			a.notifier.Success("Welcome back, %s!", user.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.mgr.Logout(cmd.Context()); err != nil {
				return err
			}
			a.notifier.Info("Signed out.")
			return nil
		},
	}
}

func (a *app) meCmd() *cobra.Command {
	me := &cobra.Command{
		Use:   "me",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			res, err := a.mgr.Profile(cmd.Context())
			if err != nil {
				return err
			}
			printUser(a.out, res.Data)
			return nil
		},
	}

	var in gateway.ProfileUpdate
	update := &cobra.Command{
		Use:   "update",
		Short: "Change your name or phone number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in == (gateway.ProfileUpdate{}) {
				return fmt.Errorf("nothing to update: pass --name or --phone")
			}
			user, err := a.mgr.UpdateProfile(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.notifier.Success("Profile updated for %s", user.Name)
			return nil
		},
	}
	update.Flags().StringVar(&in.Name, "name", "", "New display name")
	update.Flags().StringVar(&in.Phone, "phone", "", "New phone number")

	var p gateway.Paging
	reviews := &cobra.Command{
		Use:   "reviews",
		Short: "List your reviews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			res, err := a.mgr.MyReviews(cmd.Context(), p)
			if err != nil {
				return err
			}
			printReviews(a.out, res.Data.Items)
			pageFooter(a.out, res.Data.Page, res.Data.TotalPages, res.Data.Total)
			return nil
		},
	}
	pagingFlags(reviews, &p)

	me.AddCommand(update, reviews)
	return me
}

func (a *app) loansCmd() *cobra.Command {
	loans := &cobra.Command{Use: "loans", Short: "Your borrowed books"}

	var p gateway.Paging
	list := &cobra.Command{
		Use:   "list",
		Short: "List your loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			res, err := a.mgr.MyLoans(cmd.Context(), p)
			if err != nil {
				return err
			}
			printLoans(a.out, res.Data.Items, time.Now())
			pageFooter(a.out, res.Data.Page, res.Data.TotalPages, res.Data.Total)
			staleNote(a.out, res.Stale)
			return nil
		},
	}
	pagingFlags(list, &p)

	ret := &cobra.Command{
		Use:   "return <loan-id>",
		Short: "Return a borrowed book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			loan, err := a.mgr.ReturnLoan(cmd.Context(), id)
			if err != nil {
				return err
			}
			a.notifier.Success("Returned '%s'", loanTitle(loan))
			return nil
		},
	}

	loans.AddCommand(list, ret)
	return loans
}
