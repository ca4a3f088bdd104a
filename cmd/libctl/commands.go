package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/iliyamo/library-reservation/internal/config"
	"github.com/iliyamo/library-reservation/internal/database"
	"github.com/iliyamo/library-reservation/internal/logging"
	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/queue"
	"github.com/iliyamo/library-reservation/internal/repository"
	"github.com/iliyamo/library-reservation/internal/service"
)

// app holds state shared by subcommands.  The database is opened on
// first use so that --help works without one.
type app struct {
	cfg config.Config
	db  *sql.DB
}

func (a *app) open() (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.Open(context.Background(), a.cfg.Database())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.db = db
	return db, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "libctl",
		Short:        "Operate the library reservation service",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.cfg = config.LoadDatabase()
			logging.Setup(a.cfg.LogFormat, a.cfg.LogLevel)
		},
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}
	root.AddCommand(
		newMigrateCmd(a),
		newSeedCmd(a),
		newCreateAdminCmd(a),
		newSweepCmd(a),
		newConsumeCmd(a),
	)
	return root
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.open()
			if err != nil {
				return err
			}
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d statements\n", len(database.Statements()))
			return nil
		},
	}
}

// seedBook is one demo title; copies is the number of copies to add.
type seedBook struct {
	title, author, isbn, category string
	copies                        int
}

var seedCategories = []string{"Fiction", "Science", "History"}

var seedBooks = []seedBook{
	{"The Left Hand of Darkness", "Ursula K. Le Guin", "9780441478125", "Fiction", 2},
	{"A Brief History of Time", "Stephen Hawking", "9780553380163", "Science", 1},
	{"The Guns of August", "Barbara W. Tuchman", "9780345476098", "History", 3},
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo categories, books and copies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.open()
			if err != nil {
				return err
			}
			return seed(cmd.Context(), service.NewCatalogService(db), cmd.OutOrStdout())
		},
	}
}

// catalogSeeder is the part of the catalog service seeding needs.
type catalogSeeder interface {
	CreateCategory(ctx context.Context, name string, description *string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateBook(ctx context.Context, in service.BookInput) (*model.BookDetail, error)
	AddCopy(ctx context.Context, bookID uint64) (*model.BookCopy, error)
}

// seed is idempotent: existing categories and ISBNs are skipped.
func seed(ctx context.Context, catalog catalogSeeder, out io.Writer) error {
	for _, name := range seedCategories {
		if _, err := catalog.CreateCategory(ctx, name, nil); err != nil && !service.IsKind(err, service.KindConflict) {
			return fmt.Errorf("category %s: %w", name, err)
		}
	}
	cats, err := catalog.ListCategories(ctx)
	if err != nil {
		return err
	}
	ids := make(map[string]uint64, len(cats))
	for _, c := range cats {
		ids[c.Name] = c.ID
	}
	for _, sb := range seedBooks {
		book, err := catalog.CreateBook(ctx, service.BookInput{
			Title:      sb.title,
			Author:     sb.author,
			ISBN:       sb.isbn,
			CategoryID: ids[sb.category],
		})
		if service.IsKind(err, service.KindConflict) {
			fmt.Fprintf(out, "skip %s (exists)\n", sb.isbn)
			continue
		}
		if err != nil {
			return fmt.Errorf("book %s: %w", sb.isbn, err)
		}
		for i := 0; i < sb.copies; i++ {
			if _, err := catalog.AddCopy(ctx, book.ID); err != nil {
				return fmt.Errorf("copy of %s: %w", sb.isbn, err)
			}
		}
		fmt.Fprintf(out, "added %q with %d copies\n", sb.title, sb.copies)
	}
	return nil
}

func newCreateAdminCmd(a *app) *cobra.Command {
	var email, first, last string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account; the password is read from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
			if err != nil {
				return err
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			db, err := a.open()
			if err != nil {
				return err
			}
			dir := service.NewDirectoryService(repository.NewAccountRepo(db), repository.NewTokenRepo(db), a.cfg.BcryptCost)
			acc, err := dir.Create(cmd.Context(), model.RoleAdmin, service.AccountInput{
				Email:     email,
				Password:  password,
				FirstName: first,
				LastName:  last,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %d created (%s)\n", acc.AccountID(), acc.AccountEmail())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&first, "first-name", "", "given name")
	cmd.Flags().StringVar(&last, "last-name", "", "family name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")
	return cmd
}

// readPassword reads a masked password when in is a terminal and a
// single line otherwise, so the command also works in scripts.
func readPassword(in io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Mark approved borrowings past their due date as OVERDUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.open()
			if err != nil {
				return err
			}
			var events service.EventPublisher = service.NopPublisher{}
			if a.cfg.EventsEnabled && a.cfg.AMQPURL != "" {
				p := service.NewAMQPPublisher(a.cfg.AMQPURL)
				defer p.Close()
				events = p
			}
			n, err := service.NewLendingService(service.NewSQLLendingStore(db), events).SweepOverdue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d borrowings marked overdue\n", n)
			return nil
		},
	}
}

func newConsumeCmd(a *app) *cobra.Command {
	var logPath string
	cmd := &cobra.Command{
		Use:   "consume-events",
		Short: "Append lending events from RabbitMQ to a log file until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL or RABBITMQ_URL must be set")
			}
			if logPath == "" {
				logPath = a.cfg.EventsLogPath
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			slog.Info("consuming lending events", "queue", queue.LendingQueueName, "log", logPath)
			err := queue.StartLendingConsumer(ctx, a.cfg.AMQPURL, logPath)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&logPath, "log", "", "output file (default EVENTS_LOG_PATH)")
	return cmd
}
