package main

import (
	"log"

	"github.com/jackma2003/JackStack/config"
	"github.com/jackma2003/JackStack/models"
	"github.com/jackma2003/JackStack/notify"
	"github.com/jackma2003/JackStack/routes"
	"github.com/jackma2003/JackStack/utils"
)

func main() {
	config.Load()

	db := config.ConnectDB()
	err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Task{},
		&models.Comment{},
		&models.FriendRequest{},
	)
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	var tokens utils.TokenStore = utils.NewMemoryTokenStore()
	if addr := config.RedisAddr(); addr != "" {
		tokens = utils.NewRedisTokenStore(addr)
	}

	hub := notify.NewHub()

	r := routes.SetupRouter(db, hub, tokens, utils.LogMailer{})
	if err := r.Run(":" + config.Port()); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
