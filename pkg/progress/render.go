package progress

import (
	"fmt"
	"html"
	"strings"

	"github.com/marmos91/telebridge/internal/bytesize"
	"github.com/marmos91/telebridge/pkg/store"
)

// failedEpilogue is appended to the trigger message of a failed task.
const failedEpilogue = "\n\nFailed."

// Render builds the live status body for one chat: a literal header, one
// anchor line per running task, and a pending-count suffix. The format
// is fixed; chat clients parse the anchor to make the filename clickable
// and operators grep logs for the literal lines.
func Render(current []store.Task, pending int64) string {
	var b strings.Builder
	b.WriteString("Progress:\n")

	for i := range current {
		task := &current[i]
		// The body is sent with HTML parse mode; a raw < or & in the
		// filename would be read as markup.
		fmt.Fprintf(&b, "\n<a href=\"https://t.me/c/%d/%d\">%s</a>: %.2f/%.2fMB",
			task.ChatID,
			linkMessageID(task),
			html.EscapeString(task.Filename),
			bytesize.ByteSize(task.CurrentLength).Megabytes(),
			bytesize.ByteSize(task.TotalLength).Megabytes(),
		)
	}

	if pending > 0 {
		fmt.Fprintf(&b, "\n\n%d more tasks pending...", pending)
	}

	return b.String()
}

// DoneEpilogue is appended to the trigger message of a completed task.
func DoneEpilogue(task *store.Task) string {
	return fmt.Sprintf("\n\nDone.\nFile uploaded to %s\nSize %.2fMB.",
		drivePath(task.RootPath, task.Filename),
		bytesize.ByteSize(task.TotalLength).Megabytes(),
	)
}

// linkMessageID picks the message the progress line links to: the bot's
// indicator reply when one was posted, else the trigger itself.
func linkMessageID(task *store.Task) int {
	if task.MessageIndicatorID > 0 {
		return task.MessageIndicatorID
	}
	return task.MessageID
}

// drivePath joins the destination folder and the effective filename.
func drivePath(root, filename string) string {
	if strings.HasSuffix(root, "/") {
		return root + filename
	}
	return root + "/" + filename
}
