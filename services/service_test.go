package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jackma2003/JackStack/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB gives each test its own shared-cache in-memory database so
// pooled connections see the same data.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=10000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	// sqlite cannot take concurrent writers; one connection avoids
	// table-lock errors from the pool.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Task{},
		&models.Comment{},
		&models.FriendRequest{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "x",
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func seedProject(t *testing.T, db *gorm.DB, owner *models.User, members ...*models.User) *models.Project {
	t.Helper()
	project := models.Project{
		Name:    "Board",
		OwnerID: owner.ID,
		Status:  "active",
		Members: append([]*models.User{owner}, members...),
	}
	require.NoError(t, db.Create(&project).Error)
	return &project
}

// recordingNotifier captures events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	UserID  uint
	Name    string
	Payload any
}

func (n *recordingNotifier) Notify(userID uint, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{UserID: userID, Name: event, Payload: payload})
}

func (n *recordingNotifier) recorded() []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedEvent(nil), n.events...)
}

// columnTitles returns the column's task titles in position order, after
// verifying positions are exactly 0..n-1.
func columnTitles(t *testing.T, db *gorm.DB, projectID uint, status string) []string {
	t.Helper()
	var tasks []models.Task
	require.NoError(t, db.
		Where("project_id = ? AND status = ?", projectID, status).
		Order("position ASC").
		Find(&tasks).Error)

	titles := make([]string, 0, len(tasks))
	for i, task := range tasks {
		require.Equalf(t, i, task.Position,
			"column (%d,%s) is not dense: %q at position %d, want %d",
			projectID, status, task.Title, task.Position, i)
		titles = append(titles, task.Title)
	}
	return titles
}
