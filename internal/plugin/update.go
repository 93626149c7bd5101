// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/blake2b"
)

// maxUpdateRetries bounds rename attempts for one staged artifact.
const maxUpdateRetries = 3

// ApplyUpdates moves staged artifacts from the update directory over the live
// ones in the plugins directory. Staged files identical to the live artifact
// are discarded. It returns the base names that were replaced. A failure on one
// artifact is logged and does not stop the others.
func (l *Loader) ApplyUpdates(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.updateDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, oops.In("plugin").Code(CodeArtifactRead).With("dir", l.updateDir).Wrapf(err, "read update directory")
	}

	var applied []string
	for _, entry := range entries {
		if entry.IsDir() || !l.Matches(entry.Name()) {
			continue
		}
		src := filepath.Join(l.updateDir, entry.Name())
		dst := filepath.Join(l.pluginsDir, entry.Name())

		same, err := sameContent(src, dst)
		if err != nil {
			l.logger.Warn("failed to compare staged plugin", "file", entry.Name(), "error", err)
			continue
		}
		if same {
			l.logger.Debug("staged plugin identical to live artifact, discarding", "file", entry.Name())
			if err := os.Remove(src); err != nil {
				l.logger.Warn("failed to remove staged plugin", "file", entry.Name(), "error", err)
			}
			continue
		}

		if err := moveWithRetry(ctx, src, dst); err != nil {
			l.logger.Error("failed to apply plugin update", "file", entry.Name(), "error", err)
			continue
		}
		l.logger.Info("applied plugin update", "file", entry.Name())
		applied = append(applied, entry.Name())
	}
	return applied, nil
}

func moveWithRetry(ctx context.Context, src, dst string) error {
	backoff := retry.WithMaxRetries(maxUpdateRetries, retry.NewExponential(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		if err := os.Rename(src, dst); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return err //nolint:wrapcheck // not retryable, wrapped below
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.In("plugin").With("src", src).With("dst", dst).Wrapf(err, "move staged artifact")
	}
	return nil
}

// sameContent compares two files by BLAKE2b digest. A missing dst is never equal.
func sameContent(src, dst string) (bool, error) {
	if _, err := os.Stat(dst); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	a, err := digest(src)
	if err != nil {
		return false, err
	}
	b, err := digest(dst)
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}

func digest(path string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, oops.In("plugin").With("path", path).Wrap(err)
	}
	defer f.Close() //nolint:errcheck // read-only

	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, oops.In("plugin").Wrap(err)
	}
	if _, err := io.Copy(h, f); err != nil {
		return nil, oops.In("plugin").With("path", path).Wrap(err)
	}
	return h.Sum(nil), nil
}
