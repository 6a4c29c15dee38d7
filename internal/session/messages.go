package session

import (
	"image"

	tea "github.com/charmbracelet/bubbletea"

	"ocrlabel/internal/annotate"
	"ocrlabel/internal/progress"
	"ocrlabel/internal/store"
)

// Level of a NoticeMsg.
type Level int

const (
	Info Level = iota
	Error
	// Blocking notices stay until dismissed.
	Blocking
)

// NoticeMsg is a user-visible message.
type NoticeMsg struct {
	Level Level
	Text  string
}

// Notify returns a command that emits a notice.
func Notify(level Level, text string) tea.Cmd {
	return func() tea.Msg { return NoticeMsg{Level: level, Text: text} }
}

// CatalogLoadedMsg carries the catalog and the progress record.
type CatalogLoadedMsg struct {
	Entries     []store.Entry
	Progress    progress.Record
	Err         error
	ProgressErr error
}

// DocumentLoadedMsg is the document half of a LoadImage.
type DocumentLoadedMsg struct {
	Seq   uint64
	Index int
	Doc   *annotate.Document
	Err   error
}

// ImageLoadedMsg is the raster half of a LoadImage.
type ImageLoadedMsg struct {
	Seq   uint64
	Index int
	Image image.Image
	Err   error
}

// DisplayedMsg is emitted when a loaded image becomes current.
type DisplayedMsg struct {
	Index int
	ID    string
}

// SavedMsg reports a SaveDocument result. DocSeq and Rev identify the loaded
// document and the edit revision that was sent.
type SavedMsg struct {
	ID     string
	DocSeq uint64
	Rev    uint64
	Err    error
}

// ProgressMarkedMsg reports a MarkViewed or MarkUpdated result.
type ProgressMarkedMsg struct {
	ID   string
	Kind progress.Status
	Err  error
}
