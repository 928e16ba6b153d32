// Package protect preserves a fixed set of paths across a merge. Before the
// merge each existing member is copied aside to a shadow directory; after a
// conflicting (or unexpectedly destructive) merge the shadows are restored
// over the merge result, byte for byte.
package protect

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Set is the ordered list of protected paths, relative to the checkout
// root. Members may be files or directories. It is read from configuration
// at the start of a run and never mutated.
type Set []string

// Snapshot holds shadow copies of the protected paths that existed when it
// was taken.
type Snapshot struct {
	root      string
	shadowDir string
	members   []string
}

// Take copies every member of set that exists under root into a shadow
// temp directory. Members that do not exist are skipped; absence is not an
// error.
func Take(set Set, root string) (*Snapshot, error) {
	shadowDir, err := os.MkdirTemp("", "upsync-shadow-")
	if err != nil {
		return nil, fmt.Errorf("failed to create shadow directory: %w", err)
	}

	snap := &Snapshot{
		root:      root,
		shadowDir: shadowDir,
	}

	for _, member := range set {
		src := filepath.Join(root, member)
		info, err := os.Stat(src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			snap.Discard()
			return nil, fmt.Errorf("failed to stat protected path %s: %w", member, err)
		}

		dst := filepath.Join(shadowDir, member)
		if info.IsDir() {
			err = copyTree(src, dst)
		} else {
			err = copyFile(src, dst, info.Mode())
		}
		if err != nil {
			snap.Discard()
			return nil, fmt.Errorf("failed to shadow protected path %s: %w", member, err)
		}

		snap.members = append(snap.members, member)
	}

	return snap, nil
}

// Members returns the protected paths that existed when the snapshot was
// taken, in set order.
func (s *Snapshot) Members() []string {
	out := make([]string, len(s.members))
	copy(out, s.members)
	return out
}

// Changed returns the members whose working content no longer matches the
// shadow copy, including members that were deleted from the working tree.
func (s *Snapshot) Changed() ([]string, error) {
	var changed []string

	for _, member := range s.members {
		same, err := treesEqual(filepath.Join(s.shadowDir, member), filepath.Join(s.root, member))
		if err != nil {
			return nil, fmt.Errorf("failed to compare protected path %s: %w", member, err)
		}
		if !same {
			changed = append(changed, member)
		}
	}

	return changed, nil
}

// Restore puts the shadow copies of the given members back into the working
// tree, removing whatever the merge left at those paths first. Members that
// were never snapshotted (absent before the merge) are ignored.
func (s *Snapshot) Restore(members ...string) error {
	snapshotted := make(map[string]bool, len(s.members))
	for _, m := range s.members {
		snapshotted[m] = true
	}

	for _, member := range members {
		if !snapshotted[member] {
			continue
		}

		dst := filepath.Join(s.root, member)
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("failed to remove %s before restore: %w", member, err)
		}

		src := filepath.Join(s.shadowDir, member)
		info, err := os.Stat(src)
		if err != nil {
			return fmt.Errorf("failed to stat shadow of %s: %w", member, err)
		}

		if info.IsDir() {
			err = copyTree(src, dst)
		} else {
			err = copyFile(src, dst, info.Mode())
		}
		if err != nil {
			return fmt.Errorf("failed to restore protected path %s: %w", member, err)
		}
	}

	return nil
}

// RestoreAll restores every snapshotted member.
func (s *Snapshot) RestoreAll() error {
	return s.Restore(s.members...)
}

// Discard removes the shadow directory. Safe to call more than once.
func (s *Snapshot) Discard() {
	_ = os.RemoveAll(s.shadowDir)
}

// copyFile copies a single file, writing to a temp file in the destination
// directory and renaming it into place.
func copyFile(src, dst string, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".upsync-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}

// copyTree recursively copies a directory.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}

// treesEqual reports whether the file or directory at a is byte-identical
// to the one at b. A missing b (or a type mismatch) is a difference.
func treesEqual(a, b string) (bool, error) {
	infoA, err := os.Stat(a)
	if err != nil {
		return false, err
	}

	infoB, err := os.Stat(b)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	if infoA.IsDir() != infoB.IsDir() {
		return false, nil
	}

	if !infoA.IsDir() {
		return filesEqual(a, b)
	}

	filesA, err := relativeFiles(a)
	if err != nil {
		return false, err
	}
	filesB, err := relativeFiles(b)
	if err != nil {
		return false, err
	}

	if len(filesA) != len(filesB) {
		return false, nil
	}

	for i, rel := range filesA {
		if filesB[i] != rel {
			return false, nil
		}
		same, err := filesEqual(filepath.Join(a, rel), filepath.Join(b, rel))
		if err != nil {
			return false, err
		}
		if !same {
			return false, nil
		}
	}

	return true, nil
}

// relativeFiles lists the regular files under root, sorted, as relative paths.
func relativeFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// filesEqual compares two regular files by SHA-256 of their content.
func filesEqual(a, b string) (bool, error) {
	hashA, err := fileHash(a)
	if err != nil {
		return false, err
	}
	hashB, err := fileHash(b)
	if err != nil {
		return false, err
	}
	return hashA == hashB, nil
}

// fileHash computes the SHA-256 hash of a file.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
