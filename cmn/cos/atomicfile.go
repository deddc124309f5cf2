/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriteFileAtomic writes data to path via a sibling temp file followed by
// a rename, the same write-through-temp-and-rename helper the supervisor
// uses to publish its state file and the worker uses to persist a
// newly-selected volume id.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".%s.tmp-*", filepath.Base(path)))
	if err != nil {
		return errors.Wrapf(err, "atomic write %s: create temp", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "atomic write %s: write temp", path)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "atomic write %s: chmod temp", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "atomic write %s: close temp", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "atomic write %s: rename", path)
	}
	return nil
}
