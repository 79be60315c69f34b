package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/qrtune/internal/links"
	"github.com/desertthunder/qrtune/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgScansLoaded MsgKind = iota
	MsgScanResolved
	MsgScanDeleted
	MsgStatus
)

type scansLoaded struct {
	scans []*models.Scan
	err   error
}

type scanResolved struct {
	resolution links.Resolution
	scan       *models.Scan
	err        error
}

type scanDeleted struct {
	id  string
	err error
}

// scansLoadedMsg is the constructor for [MsgScansLoaded]
func scansLoadedMsg(scans []*models.Scan, err error) Msg {
	return Msg{kind: MsgScansLoaded, data: scansLoaded{scans, err}}
}

// scanResolvedMsg is the constructor for [MsgScanResolved]. scan is nil when nothing was stored.
func scanResolvedMsg(res links.Resolution, scan *models.Scan, err error) Msg {
	return Msg{kind: MsgScanResolved, data: scanResolved{res, scan, err}}
}

// scanDeletedMsg is the constructor for [MsgScanDeleted]
func scanDeletedMsg(id string, err error) Msg {
	return Msg{kind: MsgScanDeleted, data: scanDeleted{id, err}}
}

// statusMsg is the constructor for [MsgStatus]
func statusMsg(text string) Msg {
	return Msg{kind: MsgStatus, data: text}
}
