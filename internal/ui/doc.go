// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI browses scan history and resolves pasted links:
//  1. [HistoryView] : Browse recent scans (filterable list)
//  2. [DetailView] : Show the open, URI and embed targets of the selected scan
//  3. [ResolveView] : Paste a link and resolve it
//  4. [ResultView] : Display the resolution and whether it was recorded
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Storage calls run inside commands so the update loop never blocks on sqlite.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, r, o, d, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
