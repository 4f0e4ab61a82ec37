// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for playlist analysis:
//  1. [LoginView] : Verify a stored session exists before anything else
//  2. [InputView] : Paste a playlist share link or bare ID
//  3. [LoadingView] : Monitor real-time analysis progress with a spinner
//  4. [ResultsView] : Browse the analyzed tracks with summary statistics
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the AnalysisEngine, providing non-blocking status reporting during analysis.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
