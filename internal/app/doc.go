// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the run lifecycle: load the settings, open a
// platform session, optionally journal it, and execute the serial dilution.
// It is decoupled from any specific entrypoint like a CLI.
package app
