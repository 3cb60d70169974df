package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-storefront/config"
	"library-storefront/di"
	"library-storefront/logger"
	"library-storefront/notify"
	"library-storefront/storefront"
)

// app holds what every command needs once the container is up.
type app struct {
	injector *do.RootScope
	mgr      *storefront.Manager
	notifier *notify.Notifier
	log      *logger.Logger
	out      io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout}
	root := a.rootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		a.report(err)
	}
	if stopErr := a.stop(); stopErr != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", stopErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Browse the library catalog and borrow books",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.start(cmd)
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		a.booksCmd(),
		a.authorsCmd(),
		a.categoriesCmd(),
		a.cartCmd(),
		a.checkoutCmd(),
		a.loansCmd(),
		a.meCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.adminCmd(),
		a.shellCmd(),
	)
	return root
}

// start builds the container from the parsed flags.
func (a *app) start(cmd *cobra.Command) error {
	a.injector = di.NewContainer(cmd.Root().PersistentFlags())

	mgr, err := do.Invoke[*storefront.Manager](a.injector)
	if err != nil {
		return err
	}
	a.mgr = mgr
	a.notifier = do.MustInvoke[*notify.Notifier](a.injector)
	a.log = do.MustInvoke[*logger.Logger](a.injector)
	a.out = cmd.OutOrStdout()
	a.log.Debug("Running command", "command", cmd.CommandPath())
	return nil
}

func (a *app) stop() error {
	if a.injector == nil {
		return nil
	}
	return di.Shutdown(a.injector)
}

// report shows err through the notifier, or plainly if startup never got that far.
func (a *app) report(err error) {
	if errors.Is(err, storefront.ErrNotLoggedIn) {
		err = errLoginRequired
	}
	if a.notifier != nil {
		a.notifier.Error(err)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

var errLoginRequired error = loginRequiredError{}

// loginRequiredError tells the user how to sign in. It matches
// storefront.ErrNotLoggedIn.
type loginRequiredError struct{}

func (loginRequiredError) Error() string { return "you are not logged in, run 'library login' first" }
func (loginRequiredError) Unwrap() error { return storefront.ErrNotLoggedIn }

// requireLogin fails fast for commands that only make sense when signed in.
func (a *app) requireLogin() error {
	if !a.mgr.Authenticated() {
		return errLoginRequired
	}
	return nil
}

// readPassword reads a password without echoing it when stdin is a terminal.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		var line string
		if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	bytePassword, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %q", s)
	}
	return id, nil
}

func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(r[:maxLength])
	}
	return string(r[:maxLength-3]) + "..."
}
