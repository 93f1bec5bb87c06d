// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small file helpers shared by the config, storage and
// export packages.
//
//	// Replace prefs.json without ever leaving a half-written file.
//	err := util.AtomicWriteFile(path, data, 0600)
package util
