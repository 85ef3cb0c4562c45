package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrlokans/comicshelf/internal/config"
	"github.com/mrlokans/comicshelf/internal/entities"
	"github.com/mrlokans/comicshelf/internal/entrypoint"
	"github.com/mrlokans/comicshelf/internal/library"
	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/servicelock"
)

// ScanCommand indexes library folders once without starting the server.
type ScanCommand struct {
	Folder       string
	DatabasePath string
	Full         bool
	Verbose      bool
}

func NewScanCommand() *ScanCommand {
	return &ScanCommand{}
}

func (cmd *ScanCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)

	fs.StringVar(&cmd.Folder, "folder", "", "Scan only this folder (default: every library folder)")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the database file (default: DATABASE_PATH or "+config.DefaultDatabasePath+")")
	fs.BoolVar(&cmd.Full, "full", false, "Re-read every chapter, including unchanged files")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print every processed chapter and debug logs")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s scan [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Index library folders into the catalog.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s scan\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s scan -folder ~/Manga -full\n", os.Args[0])
	}

	return fs.Parse(args)
}

func (cmd *ScanCommand) Run() error {
	if cmd.Verbose {
		logging.SetLevel("debug")
	}
	cfg := config.NewConfig()
	if cmd.DatabasePath != "" {
		cfg.Database.Path = cmd.DatabasePath
	}

	app, err := entrypoint.Build(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	folders := app.Library.Folders()
	if cmd.Folder != "" {
		folder, err := library.NewFolder(cmd.Folder)
		if err != nil {
			return err
		}
		if info, err := os.Stat(folder.Path); err != nil || !info.IsDir() {
			return fmt.Errorf("folder does not exist: %s", folder.Path)
		}
		folders = []library.Folder{folder}
	}
	if len(folders) == 0 {
		return fmt.Errorf("no library folders configured; pass -folder")
	}

	release, err := app.Library.ServiceLock().TryAcquire(servicelock.Import)
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Scanning %d folder(s)\n", len(folders))
	start := time.Now()
	result, err := app.Pipeline.Scan(ctx, folders, cmd.Full, func(processed, total int, current string) {
		if cmd.Verbose {
			fmt.Printf("[%d/%d] %s\n", processed, total, current)
		}
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if err := app.Settings.SetTime(entities.SettingKeyLastScanAt, time.Now()); err != nil {
		return err
	}

	fmt.Printf("\n=== Scan Results ===\n")
	fmt.Printf("Series: %d\n", result.Series)
	fmt.Printf("Chapters added: %d\n", result.ChaptersAdded)
	fmt.Printf("Chapters updated: %d\n", result.ChaptersUpdated)
	fmt.Printf("Chapters unchanged: %d\n", result.ChaptersUnchanged)
	fmt.Printf("Chapters removed: %d\n", result.ChaptersRemoved)
	fmt.Printf("Series removed: %d\n", result.SeriesRemoved)
	fmt.Printf("Failed: %d\n", result.Failed)
	if result.FoldersMissing > 0 {
		fmt.Printf("Missing folders (chapters kept): %d\n", result.FoldersMissing)
	}
	fmt.Printf("Took %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}
