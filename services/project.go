package services

import (
	"errors"
	"strings"

	"github.com/jackma2003/JackStack/constants"
	"github.com/jackma2003/JackStack/models"
	"gorm.io/gorm"
)

// ProjectService owns project lifecycle and membership. The creator
// becomes the owner and is always a member; only the owner mutates or
// deletes a project, and deletion cascades to its tasks and comments.
type ProjectService struct {
	DB *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{DB: db}
}

type CreateProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ProjectPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

func (s *ProjectService) Create(ownerID uint, in CreateProjectInput) (*models.Project, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("Name is required")
	}

	project := models.Project{
		Name:        in.Name,
		Description: in.Description,
		OwnerID:     ownerID,
		Status:      constants.ProjectStatusActive,
		Members:     []*models.User{{ID: ownerID}},
	}
	if err := s.DB.Create(&project).Error; err != nil {
		return nil, storeErr(err)
	}
	return s.populated(project.ID)
}

// ListForUser returns every project the user owns or belongs to.
func (s *ProjectService) ListForUser(userID uint) ([]models.Project, error) {
	var projects []models.Project
	err := s.DB.Preload("Owner").
		Joins("LEFT JOIN project_members pm ON pm.project_id = projects.id").
		Where("projects.owner_id = ? OR pm.user_id = ?", userID, userID).
		Group("projects.id").
		Find(&projects).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return projects, nil
}

func (s *ProjectService) Get(actorID, projectID uint) (*models.Project, error) {
	project, err := s.populated(projectID)
	if err != nil {
		return nil, err
	}
	if !project.IsMember(actorID) {
		return nil, forbidden("Access denied")
	}
	return project, nil
}

func (s *ProjectService) Update(actorID, projectID uint, patch ProjectPatch) (*models.Project, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, invalid("Name is required")
	}
	if patch.Status != nil && !constants.ValidProjectStatus(*patch.Status) {
		return nil, invalid("Invalid project status")
	}

	project, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actorID {
		return nil, forbidden("Only project owner can update")
	}

	if patch.Name != nil {
		project.Name = *patch.Name
	}
	if patch.Description != nil {
		project.Description = *patch.Description
	}
	if patch.Status != nil {
		project.Status = *patch.Status
	}
	if err := s.DB.Save(project).Error; err != nil {
		return nil, storeErr(err)
	}
	return s.populated(projectID)
}

// Delete removes the project and everything it owns: memberships, tasks
// and their comments go in the same transaction.
func (s *ProjectService) Delete(actorID, projectID uint) error {
	project, err := s.load(projectID)
	if err != nil {
		return err
	}
	if project.OwnerID != actorID {
		return forbidden("Only project owner can delete")
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		var taskIDs []uint
		err := tx.Model(&models.Task{}).Where("project_id = ?", projectID).
			Pluck("id", &taskIDs).Error
		if err != nil {
			return storeErr(err)
		}
		if len(taskIDs) > 0 {
			if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.Comment{}).Error; err != nil {
				return storeErr(err)
			}
			if err := tx.Where("project_id = ?", projectID).Delete(&models.Task{}).Error; err != nil {
				return storeErr(err)
			}
		}
		if err := tx.Model(project).Association("Members").Clear(); err != nil {
			return storeErr(err)
		}
		return storeErr(tx.Delete(&models.Project{}, projectID).Error)
	})
}

// AddMember is owner-only. Adding an existing member is a no-op.
func (s *ProjectService) AddMember(actorID, projectID, userID uint) (*models.Project, error) {
	project, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actorID {
		return nil, forbidden("Only project owner can manage members")
	}

	var user models.User
	if err := s.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("User not found")
		}
		return nil, storeErr(err)
	}

	if err := s.DB.Model(project).Association("Members").Append(&user); err != nil {
		return nil, storeErr(err)
	}
	return s.populated(projectID)
}

// RemoveMember is owner-only; the owner can never be removed.
func (s *ProjectService) RemoveMember(actorID, projectID, userID uint) (*models.Project, error) {
	project, err := s.load(projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actorID {
		return nil, forbidden("Only project owner can manage members")
	}
	if userID == project.OwnerID {
		return nil, conflict("Project owner cannot be removed")
	}

	err = s.DB.Model(project).Association("Members").Delete(&models.User{ID: userID})
	if err != nil {
		return nil, storeErr(err)
	}
	return s.populated(projectID)
}

func (s *ProjectService) load(id uint) (*models.Project, error) {
	var project models.Project
	if err := s.DB.First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Project not found")
		}
		return nil, storeErr(err)
	}
	return &project, nil
}

func (s *ProjectService) populated(id uint) (*models.Project, error) {
	var project models.Project
	err := s.DB.Preload("Owner").Preload("Members").First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Project not found")
		}
		return nil, storeErr(err)
	}
	return &project, nil
}
