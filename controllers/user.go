package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackma2003/JackStack/middleware"
	"github.com/jackma2003/JackStack/models"
	"github.com/jackma2003/JackStack/services"
	"gorm.io/gorm"
)

type UserController struct {
	DB      *gorm.DB
	Friends *services.FriendService
}

func (uc *UserController) Me(c *gin.Context) {
	var user models.User
	if err := uc.DB.First(&user, middleware.UserID(c)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (uc *UserController) UpdateProfile(c *gin.Context) {
	var user models.User
	if err := uc.DB.First(&user, middleware.UserID(c)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var input struct {
		Username *string `json:"username"`
		Avatar   *string `json:"avatar"`
	}
	if err := bindStrict(c, &input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Username != nil {
		name := strings.TrimSpace(*input.Username)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username is required"})
			return
		}
		var existing models.User
		err := uc.DB.Where("username = ? AND id <> ?", name, user.ID).First(&existing).Error
		if err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
			return
		}
		user.Username = name
	}
	if input.Avatar != nil {
		user.Avatar = *input.Avatar
	}

	if err := uc.DB.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating profile"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (uc *UserController) Search(c *gin.Context) {
	results, err := uc.Friends.SearchUsers(middleware.UserID(c), c.Query("q"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
