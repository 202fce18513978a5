// cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ammerola/shelfstock-be/internal/adapters/db"
	"github.com/ammerola/shelfstock-be/internal/adapters/memory"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
	"github.com/ammerola/shelfstock-be/internal/core/services"
	"github.com/ammerola/shelfstock-be/internal/pkg/config"
	"github.com/ammerola/shelfstock-be/internal/pkg/logger"
	"github.com/ammerola/shelfstock-be/internal/workers"
)

// seeder registers catalog products and restocks them from delivery notes
type seeder struct {
	stock  ports.StockService
	state  *seederState
	force  bool
	logger *slog.Logger

	products int
	notes    int
	batches  int
	units    int
	failures []string
}

func (s *seeder) registerCatalog(ctx context.Context, entries []catalogEntry) {
	for _, entry := range entries {
		if _, ok := s.state.Products[entry.Key]; ok && !s.force {
			s.logger.Debug("skipping registered product", slog.String("key", entry.Key))
			continue
		}

		product := entry.product()
		if err := s.stock.RegisterProduct(ctx, product); err != nil {
			s.logger.Error("failed to register product",
				slog.String("key", entry.Key),
				slog.String("error", err.Error()))
			s.failures = append(s.failures, entry.Key)
			continue
		}
		s.state.Products[entry.Key] = product.ID.String()
		s.products++
	}
}

func (s *seeder) restockFrom(ctx context.Context, notePath string) error {
	note := filepath.Base(notePath)
	key := deliveryKey(notePath)

	rawID, ok := s.state.Products[key]
	if !ok {
		return fmt.Errorf("no catalog product for key %s", key)
	}
	productID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid product id for key %s: %w", key, err)
	}

	data, err := os.ReadFile(notePath)
	if err != nil {
		return err
	}
	lines, err := workers.ExtractPDFLines(data)
	if err != nil {
		return err
	}
	batches, skipped := workers.ParseRestockLines(lines)
	for _, line := range skipped {
		s.logger.Warn("skipping unreadable batch line",
			slog.String("note", note),
			slog.String("line", line))
	}
	if len(batches) == 0 {
		return fmt.Errorf("no batch lines found")
	}

	for _, nb := range batches {
		if _, err := s.stock.Restock(ctx, productID, nb); err != nil {
			return fmt.Errorf("batch %s: %w", nb.BatchNumber, err)
		}
		s.batches++
		s.units += nb.Quantity
	}
	s.notes++
	return nil
}

func main() {
	var (
		catalogFile   = flag.String("catalog", "./catalog.xlsx", "Excel workbook with the product catalog")
		deliveriesDir = flag.String("deliveries", "./deliveries", "Directory containing PDF delivery notes")
		stateFile     = flag.String("state", "./.seed_state.json", "State file for tracking progress")
		logLevel      = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		dryRun        = flag.Bool("dry-run", false, "Load into an in-memory store instead of the database")
		force         = flag.Bool("force", false, "Reprocess every product and delivery note")
	)
	flag.Parse()

	slogger := logger.SetupLogger(*logLevel, "json")
	ctx := context.Background()

	var store ports.BatchStore
	if *dryRun {
		store = memory.NewBatchStore()
	} else {
		cfg, err := config.Load(slogger.Logger)
		if err != nil {
			slogger.Error("failed to load configuration", slog.String("error", err.Error()))
			os.Exit(1)
		}
		dbConfig := db.DefaultConfig()
		dbConfig.Host = cfg.Database.Host
		dbConfig.Port = cfg.Database.Port
		dbConfig.User = cfg.Database.User
		dbConfig.Password = cfg.Database.Password
		dbConfig.Database = cfg.Database.Name
		dbConfig.SSLMode = cfg.Database.SSLMode
		dbConfig.MaxConnections = 4
		dbConfig.MinConnections = 1

		database, err := db.NewDatabase(ctx, dbConfig, slogger.Logger)
		if err != nil {
			slogger.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer database.Close()
		store = db.NewBatchStore(database, slogger.Logger)
	}

	state := &seederState{Products: map[string]string{}}
	if !*force && !*dryRun {
		state = loadState(*stateFile)
	}

	s := &seeder{
		stock:  services.NewStockService(store, nil, nil, slogger.Logger),
		state:  state,
		force:  *force,
		logger: slogger.Logger,
	}

	entries, err := loadCatalog(*catalogFile)
	if err != nil {
		slogger.Error("failed to load catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}
	s.registerCatalog(ctx, entries)

	notes, err := filepath.Glob(filepath.Join(*deliveriesDir, "*.pdf"))
	if err != nil {
		slogger.Error("failed to find delivery notes", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for i, notePath := range notes {
		note := filepath.Base(notePath)
		fmt.Printf("PROGRESS: Processing %d/%d: %s\n", i+1, len(notes), note)

		if !*force && state.processed(note) {
			slogger.Info("skipping already processed note", slog.String("note", note))
			continue
		}

		if err := s.restockFrom(ctx, notePath); err != nil {
			slogger.Error("failed to process delivery note",
				slog.String("note", note),
				slog.String("error", err.Error()))
			s.failures = append(s.failures, note)
			fmt.Printf("ERROR: %s - %v\n", note, err)
			continue
		}
		state.ProcessedNotes = append(state.ProcessedNotes, note)
	}

	if !*dryRun {
		if err := state.save(*stateFile); err != nil {
			slogger.Error("failed to save state", slog.String("error", err.Error()))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SEEDING SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Products registered:  %d\n", s.products)
	fmt.Printf("Delivery notes read:  %d\n", s.notes)
	fmt.Printf("Batches received:     %d (%d units)\n", s.batches, s.units)
	if len(s.failures) > 0 {
		fmt.Printf("\nFailed (%d):\n", len(s.failures))
		for _, f := range s.failures {
			fmt.Printf("  - %s\n", f)
		}
	}
	if *dryRun {
		fmt.Println("\n[DRY RUN] No changes were made to the database")
	}

	slogger.Info("seed operation completed",
		slog.Int("products", s.products),
		slog.Int("notes", s.notes),
		slog.Int("batches", s.batches),
		slog.Int("failures", len(s.failures)))
}
