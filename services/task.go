package services

import (
	"errors"
	"strings"
	"time"

	"github.com/jackma2003/JackStack/constants"
	"github.com/jackma2003/JackStack/models"
	"gorm.io/gorm"
)

// TaskService owns the board ordering rules: within one (project, status)
// column, positions are always the dense sequence 0..n-1 in display order.
// Every mutation below holds the affected column locks around one
// transaction so a concurrent writer cannot observe or commit a gap.
type TaskService struct {
	DB   *gorm.DB
	cols *columnLocks
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{DB: db, cols: newColumnLocks()}
}

type CreateTaskInput struct {
	ProjectID   uint       `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	AssigneeID  *uint      `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
	Labels      []string   `json:"labels"`
}

// TaskPatch is the typed update body. Absent fields stay untouched;
// unknown fields are rejected at the binding layer rather than merged
// into the stored row.
type TaskPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	AssigneeID  *uint      `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
	Labels      []string   `json:"labels"`
}

func (s *TaskService) ListForProject(actorID, projectID uint) ([]models.Task, error) {
	project, err := s.loadProject(s.DB, projectID)
	if err != nil {
		return nil, err
	}
	if !project.IsMember(actorID) {
		return nil, forbidden("Access denied")
	}

	var tasks []models.Task
	err = s.withTaskAssociations(s.DB).
		Where("project_id = ?", projectID).
		Order("position ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return tasks, nil
}

// Create appends the task to the end of its column: position is the
// column's current max plus one, or 0 for an empty column. Creation
// never inserts into the interior.
func (s *TaskService) Create(actorID uint, in CreateTaskInput) (*models.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("Title is required")
	}
	if in.Status == "" {
		in.Status = constants.TaskStatusTodo
	}
	if in.Priority == "" {
		in.Priority = constants.TaskPriorityMedium
	}
	if !constants.ValidTaskStatus(in.Status) {
		return nil, invalid("Invalid task status")
	}
	if !constants.ValidTaskPriority(in.Priority) {
		return nil, invalid("Invalid task priority")
	}

	project, err := s.loadProject(s.DB, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if !project.IsMember(actorID) {
		return nil, forbidden("Access denied")
	}

	assignee := in.AssigneeID
	if assignee == nil {
		actor := actorID
		assignee = &actor
	}
	labels := in.Labels
	if labels == nil {
		labels = []string{}
	}

	unlock := s.cols.lock(columnKey(in.ProjectID, in.Status))
	defer unlock()

	task := models.Task{
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		AssigneeID:  assignee,
		CreatorID:   actorID,
		DueDate:     in.DueDate,
		Labels:      labels,
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		pos, err := nextPosition(tx, in.ProjectID, in.Status)
		if err != nil {
			return err
		}
		task.Position = pos
		return storeErr(tx.Create(&task).Error)
	})
	if err != nil {
		return nil, err
	}
	return s.populated(task.ID)
}

// Update applies a field patch. A status change is a move between
// columns: the task is appended to the end of the destination column and
// the column it left is compacted so its positions stay dense.
func (s *TaskService) Update(actorID, taskID uint, patch TaskPatch) (*models.Task, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, invalid("Title is required")
	}
	if patch.Status != nil && !constants.ValidTaskStatus(*patch.Status) {
		return nil, invalid("Invalid task status")
	}
	if patch.Priority != nil && !constants.ValidTaskPriority(*patch.Priority) {
		return nil, invalid("Invalid task priority")
	}

	task, err := s.authorizeMember(actorID, taskID)
	if err != nil {
		return nil, err
	}

	var extra []string
	if patch.Status != nil {
		extra = append(extra, columnKey(task.ProjectID, *patch.Status))
	}
	task, unlock, err := s.lockTaskColumn(taskID, extra...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	srcStatus := task.Status
	moving := patch.Status != nil && *patch.Status != srcStatus

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		applyPatch(task, patch)

		if moving {
			pos, err := nextPosition(tx, task.ProjectID, *patch.Status)
			if err != nil {
				return err
			}
			task.Status = *patch.Status
			task.Position = pos
		}
		if err := storeErr(tx.Save(task).Error); err != nil {
			return err
		}
		if moving {
			return compactColumn(tx, task.ProjectID, srcStatus)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.populated(taskID)
}

// Reorder moves the task to destIndex within the destination column,
// shifting the tail right: list insertion, not a swap. An index past the
// end of the column appends.
func (s *TaskService) Reorder(actorID, taskID uint, destStatus string, destIndex int) (*models.Task, error) {
	if !constants.ValidTaskStatus(destStatus) {
		return nil, invalid("Invalid task status")
	}
	if destIndex < 0 {
		return nil, invalid("Position must not be negative")
	}

	task, err := s.authorizeMember(actorID, taskID)
	if err != nil {
		return nil, err
	}

	task, unlock, err := s.lockTaskColumn(taskID, columnKey(task.ProjectID, destStatus))
	if err != nil {
		return nil, err
	}
	defer unlock()

	srcStatus := task.Status

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var rest []models.Task
		err := tx.Where("project_id = ? AND status = ? AND id <> ?", task.ProjectID, destStatus, task.ID).
			Order("position ASC").
			Find(&rest).Error
		if err != nil {
			return storeErr(err)
		}

		if destIndex > len(rest) {
			destIndex = len(rest)
		}

		task.Status = destStatus
		task.Position = destIndex
		if err := storeErr(tx.Save(task).Error); err != nil {
			return err
		}

		for i := range rest {
			pos := i
			if i >= destIndex {
				pos = i + 1
			}
			if rest[i].Position == pos {
				continue
			}
			err := tx.Model(&models.Task{}).Where("id = ?", rest[i].ID).
				Update("position", pos).Error
			if err != nil {
				return storeErr(err)
			}
		}

		if srcStatus != destStatus {
			return compactColumn(tx, task.ProjectID, srcStatus)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.populated(taskID)
}

// Delete removes the task and renumbers the column it occupied. Only the
// project owner or the task's creator may delete.
func (s *TaskService) Delete(actorID, taskID uint) error {
	task, err := s.loadTask(s.DB, taskID)
	if err != nil {
		return err
	}
	project, err := s.loadProject(s.DB, task.ProjectID)
	if err != nil {
		return err
	}
	if project.OwnerID != actorID && task.CreatorID != actorID {
		return forbidden("Not authorized to delete this task")
	}

	task, unlock, err := s.lockTaskColumn(taskID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := storeErr(tx.Where("task_id = ?", taskID).Delete(&models.Comment{}).Error); err != nil {
			return err
		}
		if err := storeErr(tx.Delete(&models.Task{}, taskID).Error); err != nil {
			return err
		}
		return compactColumn(tx, task.ProjectID, task.Status)
	})
}

func (s *TaskService) AddComment(actorID, taskID uint, content string) (*models.Task, error) {
	if strings.TrimSpace(content) == "" {
		return nil, invalid("Comment content is required")
	}

	task, err := s.authorizeMember(actorID, taskID)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{
		TaskID:  task.ID,
		UserID:  actorID,
		Content: content,
	}
	if err := s.DB.Create(&comment).Error; err != nil {
		return nil, storeErr(err)
	}
	return s.populated(taskID)
}

// lockTaskColumn acquires the lock for the task's current column plus
// any extra column keys, then re-reads the task. If the task moved
// columns between the read and the acquisition, the held lock would not
// cover its real column, so it releases and retries.
func (s *TaskService) lockTaskColumn(taskID uint, extra ...string) (*models.Task, func(), error) {
	for {
		task, err := s.loadTask(s.DB, taskID)
		if err != nil {
			return nil, nil, err
		}
		keys := append([]string{columnKey(task.ProjectID, task.Status)}, extra...)
		unlock := s.cols.lock(keys...)

		cur, err := s.loadTask(s.DB, taskID)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if cur.Status == task.Status {
			return cur, unlock, nil
		}
		unlock()
	}
}

// authorizeMember resolves the task and checks the actor belongs to its
// project. Both lookups short-circuit with NotFound before any write.
func (s *TaskService) authorizeMember(actorID, taskID uint) (*models.Task, error) {
	task, err := s.loadTask(s.DB, taskID)
	if err != nil {
		return nil, err
	}
	project, err := s.loadProject(s.DB, task.ProjectID)
	if err != nil {
		return nil, err
	}
	if !project.IsMember(actorID) {
		return nil, forbidden("Access denied")
	}
	return task, nil
}

func (s *TaskService) loadTask(tx *gorm.DB, id uint) (*models.Task, error) {
	var task models.Task
	if err := tx.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Task not found")
		}
		return nil, storeErr(err)
	}
	return &task, nil
}

func (s *TaskService) loadProject(tx *gorm.DB, id uint) (*models.Project, error) {
	var project models.Project
	if err := tx.Preload("Members").First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Project not found")
		}
		return nil, storeErr(err)
	}
	return &project, nil
}

func (s *TaskService) withTaskAssociations(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Assignee").
		Preload("Creator").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.created_at ASC")
		}).
		Preload("Comments.User")
}

func (s *TaskService) populated(id uint) (*models.Task, error) {
	var task models.Task
	if err := s.withTaskAssociations(s.DB).First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Task not found")
		}
		return nil, storeErr(err)
	}
	return &task, nil
}

// nextPosition returns the append slot for a column: max position + 1,
// or 0 when the column is empty.
func nextPosition(tx *gorm.DB, projectID uint, status string) (int, error) {
	var top models.Task
	err := tx.Where("project_id = ? AND status = ?", projectID, status).
		Order("position DESC").
		First(&top).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr(err)
	}
	return top.Position + 1, nil
}

// compactColumn renumbers a column to 0..n-1 preserving relative order.
func compactColumn(tx *gorm.DB, projectID uint, status string) error {
	var remaining []models.Task
	err := tx.Where("project_id = ? AND status = ?", projectID, status).
		Order("position ASC").
		Find(&remaining).Error
	if err != nil {
		return storeErr(err)
	}
	for i := range remaining {
		if remaining[i].Position == i {
			continue
		}
		err := tx.Model(&models.Task{}).Where("id = ?", remaining[i].ID).
			Update("position", i).Error
		if err != nil {
			return storeErr(err)
		}
	}
	return nil
}

func applyPatch(task *models.Task, patch TaskPatch) {
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.AssigneeID != nil {
		task.AssigneeID = patch.AssigneeID
	}
	if patch.DueDate != nil {
		task.DueDate = patch.DueDate
	}
	if patch.Labels != nil {
		task.Labels = patch.Labels
	}
}
