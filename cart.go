package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"library-storefront/checkout"
)

func (a *app) cartCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "cart",
		Short: "Show the books you are about to borrow",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			printCart(a.out, a.mgr.Cart().Items(), a.mgr.Cart().TotalItems())
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <book-id>",
		Short: "Add a book to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			item, err := a.mgr.AddToCart(cmd.Context(), id)
			if err != nil {
				return err
			}
			a.notifier.Success("Added '%s' to your cart (quantity %d)", item.Book.Title, item.Quantity)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <book-id>",
		Short: "Remove a book from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a.mgr.Cart().Remove(cmd.Context(), id)
			a.notifier.Info("Removed book %d from your cart", id)
			return nil
		},
	}

	qty := &cobra.Command{
		Use:   "qty <book-id> <quantity>",
		Short: "Change how many copies of a book are in the cart; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity: %q", args[1])
			}
			a.mgr.Cart().UpdateQuantity(cmd.Context(), id, n)
			printCart(a.out, a.mgr.Cart().Items(), a.mgr.Cart().TotalItems())
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.mgr.Cart().Clear(cmd.Context())
			a.notifier.Info("Your cart is empty.")
			return nil
		},
	}

	c.AddCommand(add, remove, qty, clearCmd)
	return c
}

func (a *app) checkoutCmd() *cobra.Command {
	var (
		days  int
		date  string
		agree bool
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Borrow every book in the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			flow, err := a.mgr.Checkout()
			if err != nil {
				return err
			}
			if err := flow.SetDays(days); err != nil {
				return err
			}
			if date != "" {
				d, err := time.ParseInLocation(dateLayout, date, time.Local)
				if err != nil {
					return fmt.Errorf("invalid date %q: use YYYY-MM-DD", date)
				}
				if err := flow.SetBorrowDate(d); err != nil {
					return err
				}
			}
			for _, ag := range checkout.Agreements {
				if err := flow.Agree(ag, agree); err != nil {
					return err
				}
			}

			printCheckoutSummary(a.out, flow)
			if !flow.AllAgreed() {
				return fmt.Errorf("%w: pass --agree to accept the borrowing terms and return policy", checkout.ErrAgreementsRequired)
			}
			return a.submit(cmd, flow)
		},
	}
	cmd.Flags().IntVar(&days, "days", checkout.DefaultDays, "Loan length in days: 3, 5 or 10")
	cmd.Flags().StringVar(&date, "date", "", "Borrow date, YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&agree, "agree", false, "Accept the borrowing terms and return policy")
	return cmd
}

func (a *app) submit(cmd *cobra.Command, flow *checkout.Flow) error {
	receipt, err := flow.Submit(cmd.Context())
	var submitErr *checkout.SubmitError
	if errors.As(err, &submitErr) {
		for _, f := range submitErr.Failures {
			fmt.Fprintf(a.out, "  %-35s %s\n", truncateString(f.Book.Title, 35), f.Message())
		}
		if submitErr.Confirmed > 0 {
			fmt.Fprintf(a.out, "%d of %d book(s) were borrowed. The rest are still in your cart.\n",
				submitErr.Confirmed, submitErr.Total)
		}
	}
	if err != nil {
		return err
	}
	a.mgr.FinishCheckout()
	printReceipt(a.out, receipt)
	return nil
}

func printCheckoutSummary(w io.Writer, flow *checkout.Flow) {
	fmt.Fprintf(w, "Borrow date: %s\n", flow.BorrowDate().Format(dateLayout))
	fmt.Fprintf(w, "Return date: %s (%d days)\n", flow.ReturnDate().Format(dateLayout), flow.Days())
}

func printReceipt(w io.Writer, r checkout.Receipt) {
	if len(r.Loans) == 1 {
		fmt.Fprintf(w, "You borrowed '%s'.\n", r.FirstBook.Title)
	} else {
		fmt.Fprintf(w, "You borrowed '%s' and %d other book(s).\n", r.FirstBook.Title, len(r.Loans)-1)
	}
	fmt.Fprintf(w, "Please return by %s. Confirmation: %s\n", r.ReturnDate.Format(dateLayout), r.SessionID)
}
