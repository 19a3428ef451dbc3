package bank

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/FlipperPlz/BankProcessor/internal/issue"
)

// Extension is the file extension of banks found by Discover.
const Extension = ".pbo"

// Discover returns the bank files for an input path. A file is returned as-is;
// a directory is searched recursively for *.pbo files, in lexical order.
// A missing path yields an *issue.InputNotFoundError.
func Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &issue.InputNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("cannot stat input %q: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var found []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(d.Name()), Extension) {
			found = append(found, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot walk input %q: %w", path, err)
	}
	sort.Strings(found)
	return found, nil
}

// OpenAll opens every path with at most jobs banks being read at once. The
// result keeps the order of paths. On error every bank already opened is
// closed.
func OpenAll(ctx context.Context, paths []string, opts Options, jobs int) ([]*Bank, error) {
	banks := make([]*Bank, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := Open(p, opts)
			if err != nil {
				return err
			}
			banks[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		CloseAll(banks)
		return nil, err
	}
	return banks, nil
}

// CloseAll closes every non-nil bank, returning the first error.
func CloseAll(banks []*Bank) error {
	var first error
	for _, b := range banks {
		if b == nil {
			continue
		}
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
