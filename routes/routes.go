package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jackma2003/JackStack/controllers"
	"github.com/jackma2003/JackStack/middleware"
	"github.com/jackma2003/JackStack/notify"
	"github.com/jackma2003/JackStack/services"
	"github.com/jackma2003/JackStack/utils"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, hub *notify.Hub, tokens utils.TokenStore, mailer utils.Mailer) *gin.Engine {
	r := gin.Default()

	authController := controllers.AuthController{DB: db, Tokens: tokens, Mailer: mailer}
	friendService := services.NewFriendService(db, hub)
	userController := controllers.UserController{DB: db, Friends: friendService}
	projectController := controllers.ProjectController{Projects: services.NewProjectService(db)}
	taskController := controllers.TaskController{Tasks: services.NewTaskService(db)}
	friendController := controllers.FriendController{Friends: friendService}
	notificationController := controllers.NotificationController{Hub: hub}

	api := r.Group("/api")

	api.POST("/users/register", authController.Register)
	api.POST("/users/login", authController.Login)
	api.POST("/users/reset-password", authController.RequestPasswordReset)
	api.POST("/users/reset-password/confirm", authController.ConfirmPasswordReset)

	auth := api.Group("", middleware.AuthMiddleware())

	auth.GET("/users/me", userController.Me)
	auth.PATCH("/users/me", userController.UpdateProfile)
	auth.GET("/users/search", userController.Search)

	auth.GET("/projects", projectController.List)
	auth.POST("/projects", projectController.Create)
	auth.GET("/projects/:id", projectController.Get)
	auth.PATCH("/projects/:id", projectController.Update)
	auth.DELETE("/projects/:id", projectController.Delete)
	auth.POST("/projects/:id/members", projectController.AddMember)
	auth.DELETE("/projects/:id/members/:userId", projectController.RemoveMember)

	auth.GET("/tasks/project/:projectId", taskController.ListForProject)
	auth.POST("/tasks", taskController.Create)
	auth.PATCH("/tasks/:taskId", taskController.Update)
	auth.PATCH("/tasks/:taskId/reorder", taskController.Reorder)
	auth.DELETE("/tasks/:taskId", taskController.Delete)
	auth.POST("/tasks/:taskId/comments", taskController.AddComment)

	auth.POST("/friends/request", friendController.SendRequest)
	auth.PATCH("/friends/request/:requestId", friendController.Respond)
	auth.DELETE("/friends/request/:requestId", friendController.CancelRequest)
	auth.GET("/friends/requests", friendController.ListRequests)
	auth.GET("/friends", friendController.ListFriends)
	auth.DELETE("/friends/remove/:friendId", friendController.RemoveFriend)

	auth.GET("/notifications/stream", notificationController.Stream)

	return r
}
