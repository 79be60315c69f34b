package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/qrtune/internal/models"
)

var _ list.Item = scanItem{}

// scanItem wraps [models.Scan] to implement [list.Item].
type scanItem struct {
	scan *models.Scan
}

func (i scanItem) FilterValue() string { return i.scan.Raw() }

func (i scanItem) Title() string {
	if id := i.scan.MediaID(); id != "" {
		return fmt.Sprintf("#%d %s", i.scan.Sequence(), id)
	}
	return fmt.Sprintf("#%d %s", i.scan.Sequence(), i.scan.Raw())
}

func (i scanItem) Description() string {
	kind := string(i.scan.Kind())
	if st := i.scan.Subtype(); st != "" {
		kind = fmt.Sprintf("%s %s", kind, st)
	}
	return fmt.Sprintf("%s • %s", kind, i.scan.CreatedAt().Local().Format("Jan 2 15:04"))
}
