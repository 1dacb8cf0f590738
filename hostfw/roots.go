// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package hostfw

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kdomanski/iso9660"

	"github.com/siderolabs/go-volscan/firmware"
)

// cleanPath converts a firmware path ("\EFI\BOOT") to a slash separated path local to the root.
func cleanPath(path string) (string, error) {
	path = strings.Trim(strings.ReplaceAll(path, `\`, "/"), "/")

	if path == "" {
		return ".", nil
	}

	if !filepath.IsLocal(path) {
		return "", fmt.Errorf("path %q: %w", path, firmware.ErrNotFound)
	}

	return path, nil
}

// hostDirRoot serves a host directory as a filesystem root.
func hostDirRoot(dir, label string) func() (firmware.Dir, error) {
	if label == "" {
		label = filepath.Base(dir)
	}

	return func() (firmware.Dir, error) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}

		infos := make([]firmware.FileInfo, 0, len(entries))

		for _, entry := range entries {
			fi, err := entry.Info()
			if err != nil {
				return nil, err
			}

			info := firmware.FileInfo{
				Name:         fi.Name(),
				FileSize:     uint64(fi.Size()),
				PhysicalSize: uint64(fi.Size()),
				ModTime:      fi.ModTime(),
			}

			if fi.IsDir() {
				info.Attribute |= firmware.AttrDirectory
				info.FileSize, info.PhysicalSize = 0, 0
			}

			infos = append(infos, info)
		}

		open := func(path string) (firmware.File, error) {
			local, err := cleanPath(path)
			if err != nil {
				return nil, err
			}

			f, err := os.Open(filepath.Join(dir, filepath.FromSlash(local)))
			if err != nil {
				if os.IsNotExist(err) {
					return nil, fmt.Errorf("%s: %w", path, firmware.ErrNotFound)
				}

				return nil, err
			}

			return f, nil
		}

		return firmware.NewStaticDir(firmware.FileSystemInfo{Label: label, ReadOnly: true}, infos, open), nil
	}
}

// isoRoot serves the root directory of an ISO-9660 image.
//
// It returns nil if r doesn't hold an ISO-9660 filesystem.
func isoRoot(r io.ReaderAt) func() (firmware.Dir, error) {
	img, err := iso9660.OpenImage(r)
	if err != nil {
		return nil
	}

	if _, err = img.RootDir(); err != nil {
		return nil
	}

	return func() (firmware.Dir, error) {
		label, err := img.Label()
		if err != nil {
			return nil, fmt.Errorf("failed to read ISO label: %w", err)
		}

		root, err := img.RootDir()
		if err != nil {
			return nil, err
		}

		children, err := root.GetChildren()
		if err != nil {
			return nil, err
		}

		infos := make([]firmware.FileInfo, 0, len(children))

		for _, child := range children {
			info := firmware.FileInfo{
				Name:         child.Name(),
				FileSize:     uint64(child.Size()),
				PhysicalSize: uint64(child.Size()),
				ModTime:      child.ModTime(),
				Attribute:    firmware.AttrReadOnly,
			}

			if child.IsDir() {
				info.Attribute |= firmware.AttrDirectory
			}

			infos = append(infos, info)
		}

		open := func(path string) (firmware.File, error) {
			return openISOFile(root, path)
		}

		return firmware.NewStaticDir(firmware.FileSystemInfo{Label: label, ReadOnly: true, BlockSize: opticalBlockSize}, infos, open), nil
	}
}

func openISOFile(root *iso9660.File, path string) (firmware.File, error) {
	local, err := cleanPath(path)
	if err != nil {
		return nil, err
	}

	current := root

	for _, name := range strings.Split(local, "/") {
		children, err := current.GetChildren()
		if err != nil {
			return nil, err
		}

		var next *iso9660.File

		for _, child := range children {
			if strings.EqualFold(child.Name(), name) {
				next = child

				break
			}
		}

		if next == nil {
			return nil, fmt.Errorf("%s: %w", path, firmware.ErrNotFound)
		}

		current = next
	}

	if current.IsDir() {
		return nil, fmt.Errorf("%s: is a directory", path)
	}

	return io.NopCloser(current.Reader()), nil
}
