package store

import (
	"strings"
	"testing"
)

func validFileTask() *Task {
	return &Task{
		Type:        TaskTypeFile,
		Filename:    "video.mp4",
		RootPath:    "/Uploads",
		UploadURL:   "https://graph.example.com/upload/abc123",
		TotalLength: 40 << 20,
		ChatID:      100,
		MessageID:   6,
		ChatBotHex:  "0a646464",
		ChatUserHex: "0b656565",
	}
}

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr string
	}{
		{
			name:   "valid file task",
			mutate: func(*Task) {},
		},
		{
			name: "valid url task",
			mutate: func(task *Task) {
				task.Type = TaskTypeURL
				task.URL = "https://example.com/big.iso"
			},
		},
		{
			name:    "unknown type",
			mutate:  func(task *Task) { task.Type = "torrent" },
			wantErr: "invalid task type",
		},
		{
			name:    "empty filename",
			mutate:  func(task *Task) { task.Filename = "" },
			wantErr: "filename is required",
		},
		{
			name:    "relative root path",
			mutate:  func(task *Task) { task.RootPath = "Uploads" },
			wantErr: "root path",
		},
		{
			name:    "reserved root path",
			mutate:  func(task *Task) { task.RootPath = "/drive/root:/Uploads" },
			wantErr: "root path",
		},
		{
			name:    "missing upload url",
			mutate:  func(task *Task) { task.UploadURL = "" },
			wantErr: "upload url is required",
		},
		{
			name: "url task without source url",
			mutate: func(task *Task) {
				task.Type = TaskTypeURL
				task.URL = ""
			},
			wantErr: "url is required",
		},
		{
			name:    "missing peer tokens",
			mutate:  func(task *Task) { task.ChatUserHex = "" },
			wantErr: "peer tokens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := validFileTask()
			tt.mutate(task)

			err := task.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() returned unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestTaskTypeIsValid(t *testing.T) {
	for _, taskType := range []TaskType{TaskTypeFile, TaskTypeLink, TaskTypeURL} {
		if !taskType.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", taskType)
		}
	}

	for _, taskType := range []TaskType{"", "torrent", "FILE"} {
		if taskType.IsValid() {
			t.Errorf("IsValid(%q) = true, want false", taskType)
		}
	}
}

func TestStatusIsValid(t *testing.T) {
	for _, status := range []Status{StatusWaiting, StatusFetched, StatusStarted, StatusCompleted, StatusFailed} {
		if !status.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", status)
		}
	}

	for _, status := range []Status{"", "done", "Waiting"} {
		if status.IsValid() {
			t.Errorf("IsValid(%q) = true, want false", status)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusWaiting, false},
		{StatusFetched, false},
		{StatusStarted, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("Terminal(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
