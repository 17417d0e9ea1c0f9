// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package app contains the core application logic. It wires the patch
// builder, the scheduler, the engine and a driver together with the status
// server and the patch watcher, decoupled from any specific entrypoint like
// a CLI.
package app
