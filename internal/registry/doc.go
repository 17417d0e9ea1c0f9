// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package registry maps processor kinds used in patch files to the compiled
// Go factories that build them.
//
// Modules register their processors at startup. Each processor declares a
// parameter struct whose tagged fields are bound to patch attributes, and
// the registry checks those structs once so that a bad tag fails at startup
// rather than while a patch is being rebuilt.
package registry
