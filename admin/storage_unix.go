// tagbox
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of tagbox.
//
// tagbox is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// tagbox is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with tagbox; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

//go:build linux || darwin

package admin

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func storageUsage(root string) (StorageResponse, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return StorageResponse{}, fmt.Errorf("statfs %s: %w", root, err)
	}
	bsize := uint64(st.Bsize)
	total := st.Blocks * bsize
	return StorageResponse{
		Total: total,
		Free:  st.Bavail * bsize,
		Used:  total - st.Bfree*bsize,
	}, nil
}

func isNotEmpty(err error) bool {
	return errors.Is(err, unix.ENOTEMPTY) || errors.Is(err, unix.EEXIST)
}
