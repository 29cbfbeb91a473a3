package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
)

// readlineWriter keeps log lines from tearing the prompt
type readlineWriter struct {
	rl  *readline.Instance
	out io.Writer
}

func (w *readlineWriter) Write(p []byte) (n int, err error) {
	if w.rl != nil {
		w.rl.Clean()
	}
	n, err = w.out.Write(p)
	if w.rl != nil {
		w.rl.Refresh()
	}
	return n, err
}

// historyFilePath returns a file under the user cache directory, or ""
// when there is no home to put it in
func historyFilePath(name string) string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(cacheDir, "deyectl")
	_ = os.MkdirAll(dir, 0750)
	return filepath.Join(dir, name)
}
