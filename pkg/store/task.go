package store

import (
	"fmt"
	"time"

	"github.com/marmos91/telebridge/pkg/onedrive"
)

// TaskType identifies where a transfer's source bytes come from.
type TaskType string

const (
	// TaskTypeFile transfers media attached to a message the bot can read.
	TaskTypeFile TaskType = "file"

	// TaskTypeLink transfers media behind a t.me message link.
	TaskTypeLink TaskType = "link"

	// TaskTypeURL transfers an arbitrary HTTP(S) resource.
	TaskTypeURL TaskType = "url"
)

// IsValid checks if the task type is one of the supported values.
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeFile, TaskTypeLink, TaskTypeURL:
		return true
	}
	return false
}

// Status is a stage in the task lifecycle. Statuses are persisted as
// their string names, never as ordinals.
type Status string

const (
	// StatusWaiting marks a task queued for dispatch.
	StatusWaiting Status = "waiting"

	// StatusFetched marks a task claimed by the scheduler but not yet
	// handed to a worker.
	StatusFetched Status = "fetched"

	// StatusStarted marks a task with a running transfer.
	StatusStarted Status = "started"

	// StatusCompleted marks a finished transfer.
	StatusCompleted Status = "completed"

	// StatusFailed marks a transfer that gave up.
	StatusFailed Status = "failed"
)

// statusRank orders the lifecycle. Updates must move strictly forward;
// the only sanctioned backward move is the boot-time reset of rows a
// previous run left in flight.
var statusRank = map[Status]int{
	StatusWaiting:   0,
	StatusFetched:   1,
	StatusStarted:   2,
	StatusCompleted: 3,
	StatusFailed:    3,
}

// IsValid checks if the status is one of the lifecycle values.
func (s Status) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether the status ends the lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one queued transfer: a Telegram file, a t.me message link, or
// an HTTP resource, headed for a drive folder.
type Task struct {
	ID uint `gorm:"primaryKey"`

	// Type selects the worker that runs the transfer.
	Type TaskType `gorm:"size:16;not null"`

	// Filename is the target name under RootPath. The drive may rename
	// the file on a conflict; the stored value follows the rename.
	Filename string `gorm:"not null"`

	// RootPath is the drive folder the file lands in.
	RootPath string `gorm:"not null"`

	// URL is the source address for TaskTypeURL tasks.
	URL string

	// UploadURL addresses the drive upload session the parts go to.
	UploadURL string `gorm:"not null"`

	// CurrentLength is the number of bytes already on the drive.
	CurrentLength uint64 `gorm:"not null;default:0"`

	// TotalLength is the full size of the source in bytes.
	TotalLength uint64 `gorm:"not null;default:0"`

	// ChatID and MessageID identify the trigger message. A live task is
	// unique per trigger; re-sending the trigger replaces the task.
	ChatID    int64 `gorm:"not null;uniqueIndex:idx_tasks_chat_message"`
	MessageID int   `gorm:"not null;uniqueIndex:idx_tasks_chat_message"`

	// Peer tokens for re-resolving the chat on each transport.
	ChatBotHex    string `gorm:"not null;index"`
	ChatUserHex   string `gorm:"not null"`
	ChatOriginHex string

	// MessageIndicatorID is the bot's transfer-accepted reply, if any.
	// Deleting it cancels the task just like deleting the trigger.
	MessageIndicatorID int

	// MessageOriginID is the linked-from message for TaskTypeLink tasks.
	MessageOriginID int

	Status Status `gorm:"size:16;not null;index"`

	// AutoDelete removes the trigger and indicator messages once the
	// transfer settles.
	AutoDelete bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Task) TableName() string {
	return "tasks"
}

// Validate checks the task fields before insertion.
func (t *Task) Validate() error {
	if !t.Type.IsValid() {
		return fmt.Errorf("invalid task type: %s", t.Type)
	}
	if t.Filename == "" {
		return fmt.Errorf("filename is required")
	}
	if err := onedrive.ValidateRootPath(t.RootPath); err != nil {
		return err
	}
	if t.UploadURL == "" {
		return fmt.Errorf("upload url is required")
	}
	if t.Type == TaskTypeURL && t.URL == "" {
		return fmt.Errorf("url is required for url tasks")
	}
	if t.ChatBotHex == "" || t.ChatUserHex == "" {
		return fmt.Errorf("chat peer tokens are required")
	}
	return nil
}
