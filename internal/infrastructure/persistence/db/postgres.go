package db

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rtcface/chat-bot-backend/internal/infrastructure/persistence/model"
)

func InitGorm(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	err = gdb.AutoMigrate(
		&model.UserModel{},
		&model.APIKeyModel{},
		&model.RoleModel{},
		&model.ConversationModel{},
		&model.MessageModel{},
	)
	if err != nil {
		return nil, err
	}
	return gdb, nil
}
