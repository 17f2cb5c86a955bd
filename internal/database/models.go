package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CardTemplate 持久化一份卡片设计。Content 以 JSONB 保存完整模板（含字段与背景）。
type CardTemplate struct {
	ID              string         `gorm:"primaryKey;size:36"`
	Name            string         `gorm:"size:255"`
	Category        string         `gorm:"size:32;index"`
	Content         datatypes.JSON `gorm:"type:jsonb"`
	PreviewImageURL string         `gorm:"size:512"`
	CreatedAt       time.Time
	UpdatedAt       time.Time `gorm:"index"`
}

// Person 是注册表单写入、本服务只读的人员记录。
// RecordKey 由类别与注册号派生，用于按注册号快速定位。
type Person struct {
	gorm.Model
	RecordKey          string         `gorm:"uniqueIndex;size:128"`
	RegistrationNumber string         `gorm:"uniqueIndex;size:64"`
	Category           string         `gorm:"size:32;index"`
	BirthDate          string         `gorm:"size:10"`
	Values             datatypes.JSON `gorm:"column:payload;type:jsonb"`
}

// Artifact 记录一次导出（单卡 PNG 或整页 PDF）的状态与对象存储位置。
type Artifact struct {
	gorm.Model
	Kind          string `gorm:"size:16"`
	Status        string `gorm:"size:32"`
	ObjectKey     string `gorm:"size:512"`
	SessionID     string `gorm:"size:64;index"`
	CorrelationID string `gorm:"size:64"`
	ErrorMessage  string `gorm:"size:512"`
}

// 导出类型与状态。
const (
	ArtifactCardPNG  = "card_png"
	ArtifactSheetPDF = "sheet_pdf"

	ArtifactPending   = "pending"
	ArtifactCompleted = "completed"
	ArtifactFailed    = "failed"
)

// AutoMigrate 迁移本服务拥有的全部表。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&CardTemplate{}, &Person{}, &Artifact{})
}
