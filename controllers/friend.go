package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackma2003/JackStack/middleware"
	"github.com/jackma2003/JackStack/services"
)

type FriendController struct {
	Friends *services.FriendService
}

func (fc *FriendController) SendRequest(c *gin.Context) {
	var input struct {
		ReceiverID uint `json:"receiver_id"`
	}
	if err := c.BindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	request, err := fc.Friends.SendRequest(middleware.UserID(c), input.ReceiverID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Friend request sent successfully",
		"request": request,
	})
}

func (fc *FriendController) Respond(c *gin.Context) {
	requestID, ok := paramID(c, "requestId")
	if !ok {
		return
	}
	var input struct {
		Status string `json:"status"`
	}
	if err := c.BindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := fc.Friends.Respond(requestID, middleware.UserID(c), input.Status); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend request " + input.Status})
}

func (fc *FriendController) CancelRequest(c *gin.Context) {
	requestID, ok := paramID(c, "requestId")
	if !ok {
		return
	}
	if err := fc.Friends.CancelRequest(requestID, middleware.UserID(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend request cancelled"})
}

func (fc *FriendController) ListRequests(c *gin.Context) {
	requests, err := fc.Friends.ListPendingRequests(middleware.UserID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (fc *FriendController) ListFriends(c *gin.Context) {
	friends, err := fc.Friends.ListFriends(middleware.UserID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, friends)
}

func (fc *FriendController) RemoveFriend(c *gin.Context) {
	friendID, ok := paramID(c, "friendId")
	if !ok {
		return
	}
	if err := fc.Friends.RemoveFriend(middleware.UserID(c), friendID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend removed"})
}
