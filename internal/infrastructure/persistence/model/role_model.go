package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/rtcface/chat-bot-backend/internal/domain"
)

type RoleModel struct {
	ID            string         `gorm:"primaryKey;size:36;column:id"`
	Name          string         `gorm:"uniqueIndex:idx_roles_name;size:100;not null;column:name"`
	Description   string         `gorm:"type:text;column:description"`
	Type          string         `gorm:"size:20;not null;default:custom;column:type"`
	SystemPrompt  string         `gorm:"type:text;not null;column:system_prompt"`
	Configuration datatypes.JSON `gorm:"column:configuration"`
	IsActive      bool           `gorm:"not null;default:true;column:is_active"`
	UsageCount    int            `gorm:"not null;default:0;column:usage_count"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;not null;column:created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime;not null;column:updated_at"`
}

func (RoleModel) TableName() string {
	return "roles"
}

func (m *RoleModel) ToDomain() *domain.Role {
	var cfg domain.RoleConfiguration
	if len(m.Configuration) > 0 {
		// 配置损坏时按空配置处理
		_ = json.Unmarshal(m.Configuration, &cfg)
	}
	return &domain.Role{
		ID:            m.ID,
		Name:          m.Name,
		Description:   m.Description,
		Type:          domain.RoleType(m.Type),
		SystemPrompt:  m.SystemPrompt,
		Configuration: cfg,
		IsActive:      m.IsActive,
		UsageCount:    m.UsageCount,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func ToRoleModel(r *domain.Role) *RoleModel {
	cfg, _ := json.Marshal(r.Configuration)
	return &RoleModel{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Type:          string(r.Type),
		SystemPrompt:  r.SystemPrompt,
		Configuration: cfg,
		IsActive:      r.IsActive,
		UsageCount:    r.UsageCount,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
