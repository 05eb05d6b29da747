package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackma2003/JackStack/middleware"
	"github.com/jackma2003/JackStack/services"
)

type TaskController struct {
	Tasks *services.TaskService
}

func (tc *TaskController) ListForProject(c *gin.Context) {
	projectID, ok := paramID(c, "projectId")
	if !ok {
		return
	}
	tasks, err := tc.Tasks.ListForProject(middleware.UserID(c), projectID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (tc *TaskController) Create(c *gin.Context) {
	var input services.CreateTaskInput
	if err := bindStrict(c, &input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := tc.Tasks.Create(middleware.UserID(c), input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (tc *TaskController) Update(c *gin.Context) {
	taskID, ok := paramID(c, "taskId")
	if !ok {
		return
	}
	var patch services.TaskPatch
	if err := bindStrict(c, &patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := tc.Tasks.Update(middleware.UserID(c), taskID, patch)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (tc *TaskController) Reorder(c *gin.Context) {
	taskID, ok := paramID(c, "taskId")
	if !ok {
		return
	}
	var input struct {
		Status      string `json:"status"`
		NewPosition int    `json:"new_position"`
	}
	if err := c.BindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := tc.Tasks.Reorder(middleware.UserID(c), taskID, input.Status, input.NewPosition)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (tc *TaskController) Delete(c *gin.Context) {
	taskID, ok := paramID(c, "taskId")
	if !ok {
		return
	}
	if err := tc.Tasks.Delete(middleware.UserID(c), taskID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

func (tc *TaskController) AddComment(c *gin.Context) {
	taskID, ok := paramID(c, "taskId")
	if !ok {
		return
	}
	var input struct {
		Content string `json:"content"`
	}
	if err := c.BindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := tc.Tasks.AddComment(middleware.UserID(c), taskID, input.Content)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}
