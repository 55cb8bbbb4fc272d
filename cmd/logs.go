package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/jcdickinson/doxsearch/internal/config"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View daemon log file",
	Run:   runLogs,
}

var (
	logsFollow bool
	logsLines  int
)

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of lines to show")
}

func runLogs(cmd *cobra.Command, args []string) {
	logPath := config.LogPath()
	f, err := os.Open(logPath)
	if os.IsNotExist(err) {
		fmt.Println("no log file found (daemon may not have run yet)")
		return
	}
	if err != nil {
		log.Fatalf("opening log: %v", err)
	}

	lines, err := lastLines(f, logsLines)
	if err != nil {
		log.Fatalf("reading log: %v", err)
	}
	for _, line := range lines {
		fmt.Println(line)
	}

	if !logsFollow {
		f.Close()
		return
	}

	// lastLines read to EOF, so everything from here on is new.
	follower, err := newLogFollower(logPath, f)
	if err != nil {
		log.Fatalf("following log: %v", err)
	}
	defer follower.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := follower.Run(ctx, os.Stdout); err != nil {
		log.Fatalf("following log: %v", err)
	}
}

// logFollower copies what gets appended to a log file. It rewinds when the
// file is truncated and reopens it when it is recreated.
type logFollower struct {
	path    string
	f       *os.File
	watcher *fsnotify.Watcher
}

// newLogFollower takes ownership of f, which is read from its current
// offset on. The parent directory is watched so a recreated file is seen.
func newLogFollower(path string, f *os.File) (*logFollower, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}
	return &logFollower{path: filepath.Clean(path), f: f, watcher: watcher}, nil
}

func (lf *logFollower) Run(ctx context.Context, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-lf.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		case ev, ok := <-lf.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != lf.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create):
				nf, err := os.Open(lf.path)
				if err != nil {
					// gone again before we got to it
					continue
				}
				lf.f.Close()
				lf.f = nf
			case ev.Has(fsnotify.Write):
				if err := lf.rewindIfTruncated(); err != nil {
					return err
				}
			default:
				continue
			}
			if _, err := io.Copy(w, lf.f); err != nil {
				return err
			}
		}
	}
}

func (lf *logFollower) rewindIfTruncated() error {
	pos, err := lf.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	info, err := lf.f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < pos {
		_, err = lf.f.Seek(0, io.SeekStart)
	}
	return err
}

func (lf *logFollower) Close() error {
	lf.watcher.Close()
	return lf.f.Close()
}

// lastLines returns the final n lines of r, reading it to the end.
func lastLines(r io.Reader, n int) ([]string, error) {
	if n <= 0 {
		_, err := io.Copy(io.Discard, r)
		return nil, err
	}
	ring := make([]string, 0, n)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, sc.Text())
	}
	return ring, sc.Err()
}
