package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reelproof/reelproof/internal/client/uploader"
)

// add enqueues one or more files. An optional first argument selects the
// asset category; the rest are file paths:
//
//	add video clip1.mp4 clip2.mov
//	add contract.pdf
func (a *App) add(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: add [video|photo|audio|document] <file> [file...]")
		return
	}

	category := uploader.CategoryAny
	paths := args
	if c, ok := uploader.ParseCategory(args[0]); ok {
		category = c
		paths = args[1:]
	}
	if len(paths) == 0 {
		fmt.Println("add: no files given")
		return
	}

	sources := make([]uploader.FileSource, 0, len(paths))
	for _, p := range paths {
		src, err := uploader.NewFileSource(p)
		if err != nil {
			fmt.Println("add:", err)
			return
		}
		sources = append(sources, src)
	}

	added, err := a.manager.Enqueue(sources, category)
	if err != nil {
		var be *uploader.BatchError
		if errors.As(err, &be) {
			fmt.Println("Nothing was added:")
			for _, f := range be.Files {
				fmt.Printf("  %s: %s\n", f.FileName, f.Reason)
			}
			return
		}
		fmt.Println("add:", err)
		return
	}
	fmt.Printf("Added %d file(s) to the queue.\n", len(added))
}

// list prints the queue contents in enqueue order.
func (a *App) list() {
	tasks := a.manager.Snapshot()
	if len(tasks) == 0 {
		fmt.Println("Queue is empty.")
		return
	}
	fmt.Printf("%-10s %-30s %-10s %9s %12s  %s\n", "ID", "FILE", "STATUS", "PROGRESS", "SPEED", "ERROR")
	for _, t := range tasks {
		fmt.Printf("%-10s %-30s %-10s %8d%% %12s  %s\n",
			shortID(t.ID), truncate(t.Source.Name, 30), t.Status, t.Progress, formatSpeed(t.UploadSpeed), t.Err)
	}
}

// control resolves an id prefix and applies op to the matching task.
func (a *App) control(args []string, name string, op func(string)) {
	if len(args) == 0 {
		fmt.Printf("Usage: %s <id>\n", name)
		return
	}
	id, err := a.resolveID(args[0])
	if err != nil {
		fmt.Printf("%s: %s\n", name, err)
		return
	}
	op(id)
}

func (a *App) clear(args []string) {
	if len(args) > 0 && args[0] == "all" {
		removed := a.manager.ClearAll()
		fmt.Printf("Removed %d task(s).\n", len(removed))
		return
	}
	removed := a.manager.ClearCompleted()
	fmt.Printf("Removed %d completed task(s).\n", len(removed))
}

// resolveID matches a full id or an unambiguous prefix.
func (a *App) resolveID(prefix string) (string, error) {
	var match string
	for _, t := range a.manager.Snapshot() {
		if t.ID == prefix {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("id %q is ambiguous", prefix)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no task matches %q", prefix)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func formatSpeed(bps float64) string {
	switch {
	case bps <= 0:
		return "-"
	case bps >= 1024*1024:
		return fmt.Sprintf("%.1f MB/s", bps/(1024*1024))
	case bps >= 1024:
		return fmt.Sprintf("%.1f KB/s", bps/1024)
	default:
		return fmt.Sprintf("%.0f B/s", bps)
	}
}
