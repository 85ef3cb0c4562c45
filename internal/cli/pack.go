package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mrlokans/comicshelf/internal/packer"
)

// PackCommand bundles folders of page images into .cbz archives.
type PackCommand struct {
	Directory  string
	OutputDir  string
	Subfolders bool
	Naming     string
	Deny       string
	Quiet      bool
}

func NewPackCommand() *PackCommand {
	return &PackCommand{}
}

func (cmd *PackCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)

	fs.StringVar(&cmd.Directory, "dir", "", "Folder to pack (required)")
	fs.StringVar(&cmd.OutputDir, "out", "", "Directory for the archives (default: parent of each packed folder)")
	fs.BoolVar(&cmd.Subfolders, "subfolders", false, "Pack every immediate subfolder into its own archive")
	fs.StringVar(&cmd.Naming, "naming", "folder", "Archive naming: 'folder' or 'parent' (\"<parent> - <folder>\")")
	fs.StringVar(&cmd.Deny, "deny", "", "Comma-separated subfolder names to skip with -subfolders")
	fs.BoolVar(&cmd.Quiet, "quiet", false, "Do not print progress")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s pack -dir <folder> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Pack folders of page images into .cbz archives.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s pack -dir ./Berserk/v01\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s pack -dir ./Berserk -subfolders -naming parent -deny extras,scans\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Directory == "" {
		fs.Usage()
		return fmt.Errorf("directory is required")
	}
	if _, err := cmd.naming(); err != nil {
		return err
	}

	return nil
}

func (cmd *PackCommand) naming() (packer.Naming, error) {
	switch cmd.Naming {
	case "", "folder":
		return packer.NamingFolder, nil
	case "parent":
		return packer.NamingParentAndFolder, nil
	default:
		return 0, fmt.Errorf("unknown naming %q (want 'folder' or 'parent')", cmd.Naming)
	}
}

// Packer builds the packer configured by the flags.
func (cmd *PackCommand) Packer(progress packer.Progress) (*packer.Packer, error) {
	naming, err := cmd.naming()
	if err != nil {
		return nil, err
	}
	p := &packer.Packer{
		Mode:      packer.ModeCurrentFolder,
		Naming:    naming,
		Deny:      splitList(cmd.Deny),
		OutputDir: cmd.OutputDir,
		Progress:  progress,
	}
	if cmd.Subfolders {
		p.Mode = packer.ModeSubfolders
	}
	return p, nil
}

func (cmd *PackCommand) Run() error {
	var progress packer.Progress
	if !cmd.Quiet {
		progress = newProgressPrinter(os.Stderr)
	}
	p, err := cmd.Packer(progress)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	created, err := p.Pack(ctx, cmd.Directory)
	if !cmd.Quiet {
		fmt.Fprintln(os.Stderr)
	}
	for _, path := range created {
		fmt.Println(path)
	}
	if err != nil {
		return fmt.Errorf("packing stopped after %d archive(s): %w", len(created), err)
	}
	if len(created) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to pack")
	}
	return nil
}

// progressPrinter renders packing progress on a single terminal line.
type progressPrinter struct {
	w       io.Writer
	overall float64
	current string
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) FileProgress(written, total int64) {
	if total <= 0 {
		return
	}
	p.print(fmt.Sprintf("%3d%% of file", written*100/total))
}

func (p *progressPrinter) OverallProgress(fraction float64) {
	p.overall = fraction
	p.print("")
}

func (p *progressPrinter) CurrentFile(name string) {
	p.current = name
}

func (p *progressPrinter) print(detail string) {
	line := fmt.Sprintf("[%3.0f%%] %s", p.overall*100, p.current)
	if detail != "" {
		line += " (" + detail + ")"
	}
	fmt.Fprintf(p.w, "\r\033[K%s", line)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
