package models

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EnumLogStatus string

const (
	LogStatusStarted EnumLogStatus = "started"
	LogStatusSuccess EnumLogStatus = "success"
	LogStatusFailed  EnumLogStatus = "failed"
)

// snowflake 노드 번호는 인스턴스마다 달라야 합니다. 기본값은 1.
var logIDNode, _ = snowflake.NewNode(1)

// SetLogNode 는 서버 시작 시 한 번 호출합니다.
func SetLogNode(nodeID int64) error {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	logIDNode = node
	return nil
}

// DeploymentLog 는 추가만 되는 감사 로그입니다. 수정하지 않습니다.
// 같은 노드에서 snowflake ID 는 밀리초 + 시퀀스로 단조 증가하므로 ID 순서가 곧 기록 순서입니다.
type DeploymentLog struct {
	ID        int64             `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	StoreID   uuid.UUID         `gorm:"column:store_id;type:uuid;not null;index" json:"storeId"`
	Step      string            `gorm:"column:step;not null" json:"step"`
	Status    EnumLogStatus     `gorm:"column:status;not null" json:"status"`
	Message   string            `gorm:"column:message" json:"message,omitempty"`
	Metadata  datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (l *DeploymentLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == 0 {
		l.ID = logIDNode.Generate().Int64()
	}
	return nil
}
