package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// InsertTask queues a transfer. A previous task for the same trigger
// message is replaced; the new row always starts out waiting.
func (s *Store) InsertTask(ctx context.Context, task *Task) (uint, error) {
	if err := task.Validate(); err != nil {
		return 0, fmt.Errorf("invalid task: %w", err)
	}

	task.ID = 0
	task.Status = StatusWaiting

	insert := func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// A re-sent trigger replaces its previous task.
			if err := tx.Where("chat_id = ? AND message_id = ?", task.ChatID, task.MessageID).
				Delete(&Task{}).Error; err != nil {
				return err
			}
			return tx.Create(task).Error
		})
	}

	err := insert()
	if isUniqueConstraintError(err) {
		// Lost a race against a concurrent insert for the same trigger.
		err = insert()
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert task: %w", err)
	}

	return task.ID, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id uint) (*Task, error) {
	var task Task
	if err := s.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, convertNotFoundError(err, ErrTaskNotFound)
	}
	return &task, nil
}

// FetchNext claims the oldest waiting task, moving it to StatusFetched
// so a concurrent tick cannot dispatch the same row twice. It returns
// ErrNoWaitingTasks when the queue is idle.
func (s *Store) FetchNext(ctx context.Context) (*Task, error) {
	var task Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ?", StatusWaiting).Order("id").First(&task).Error; err != nil {
			return convertNotFoundError(err, ErrNoWaitingTasks)
		}

		res := tx.Model(&Task{}).
			Where("id = ? AND status = ?", task.ID, StatusWaiting).
			Update("status", StatusFetched)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoWaitingTasks
		}

		task.Status = StatusFetched
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &task, nil
}

// SetStatus advances a task through its lifecycle. Setting the current
// status again is a no-op; moving backward returns ErrInvalidTransition.
func (s *Store) SetStatus(ctx context.Context, id uint, status Status) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status: %s", status)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task Task
		if err := tx.First(&task, id).Error; err != nil {
			return convertNotFoundError(err, ErrTaskNotFound)
		}

		if task.Status == status {
			return nil
		}
		if statusRank[status] <= statusRank[task.Status] {
			return fmt.Errorf("%w: task %d cannot move from %s to %s",
				ErrInvalidTransition, id, task.Status, status)
		}

		return tx.Model(&task).Update("status", status).Error
	})
}

// SetCurrentLength records how many bytes of the task have reached the
// drive.
func (s *Store) SetCurrentLength(ctx context.Context, id uint, length uint64) error {
	res := s.db.WithContext(ctx).Model(&Task{}).
		Where("id = ?", id).
		Update("current_length", length)
	if res.Error != nil {
		return fmt.Errorf("failed to update current length: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// UpdateFilename stores the name the drive actually assigned, which can
// differ from the requested one after a conflict rename.
func (s *Store) UpdateFilename(ctx context.Context, id uint, filename string) error {
	res := s.db.WithContext(ctx).Model(&Task{}).
		Where("id = ?", id).
		Update("filename", filename)
	if res.Error != nil {
		return fmt.Errorf("failed to update filename: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a task row.
func (s *Store) DeleteTask(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Task{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteByMessage removes the tasks tied to a deleted chat message. The
// message can be either the trigger or the bot's forwarded indicator.
// A zero chatID matches any chat; deletions in private chats arrive
// without a chat id. It returns the removed tasks so the caller can
// abort their transfers.
func (s *Store) DeleteByMessage(ctx context.Context, chatID int64, messageID int) ([]Task, error) {
	var tasks []Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("message_id = ? OR message_indicator_id = ?", messageID, messageID)
		if chatID != 0 {
			q = q.Where("chat_id = ?", chatID)
		}
		if err := q.Order("id").Find(&tasks).Error; err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(tasks))
		for _, task := range tasks {
			ids = append(ids, task.ID)
		}
		return tx.Delete(&Task{}, ids).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete tasks for message: %w", err)
	}

	return tasks, nil
}

// Clear empties the queue and returns the removed tasks so in-flight
// transfers can be aborted.
func (s *Store) Clear(ctx context.Context) ([]Task, error) {
	var tasks []Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("id").Find(&tasks).Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM tasks").Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clear tasks: %w", err)
	}

	return tasks, nil
}

// PendingCount counts the tasks queued for a chat that have not started
// running yet.
func (s *Store) PendingCount(ctx context.Context, chatBotHex string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Task{}).
		Where("chat_bot_hex = ? AND status IN ?", chatBotHex, []Status{StatusWaiting, StatusFetched}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending tasks: %w", err)
	}
	return count, nil
}

// HasStartedTasks reports whether a chat has a transfer running right
// now.
func (s *Store) HasStartedTasks(ctx context.Context, chatBotHex string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Task{}).
		Where("chat_bot_hex = ? AND status = ?", chatBotHex, StatusStarted).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count started tasks: %w", err)
	}
	return count > 0, nil
}

// ChatKey identifies a chat by its transport peer tokens.
type ChatKey struct {
	BotHex  string
	UserHex string
}

// ChatTasks collects the tasks of one chat by lifecycle stage.
type ChatTasks struct {
	Current   []Task // running transfers
	Completed []Task
	Failed    []Task
}

// GroupedByChat collects running and settled tasks per chat, ordered by
// id within each group. Waiting and fetched rows are not included.
func (s *Store) GroupedByChat(ctx context.Context) (map[ChatKey]*ChatTasks, error) {
	var tasks []Task
	err := s.db.WithContext(ctx).
		Where("status IN ?", []Status{StatusStarted, StatusCompleted, StatusFailed}).
		Order("id").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by chat: %w", err)
	}

	grouped := make(map[ChatKey]*ChatTasks)
	for _, task := range tasks {
		key := ChatKey{BotHex: task.ChatBotHex, UserHex: task.ChatUserHex}
		group := grouped[key]
		if group == nil {
			group = &ChatTasks{}
			grouped[key] = group
		}

		switch task.Status {
		case StatusStarted:
			group.Current = append(group.Current, task)
		case StatusCompleted:
			group.Completed = append(group.Completed, task)
		case StatusFailed:
			group.Failed = append(group.Failed, task)
		}
	}

	return grouped, nil
}

// ResetStale moves rows a previous run left in flight back to waiting.
// This is the one sanctioned backward transition; it runs before the
// scheduler starts ticking.
func (s *Store) ResetStale(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Task{}).
		Where("status IN ?", []Status{StatusFetched, StatusStarted}).
		Update("status", StatusWaiting)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reset stale tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Truncate removes every task row.
func (s *Store) Truncate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("DELETE FROM tasks").Error; err != nil {
		return fmt.Errorf("failed to truncate tasks: %w", err)
	}
	return nil
}
