package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Adcage/EduInsight-sub000/internal/dto"
	"github.com/Adcage/EduInsight-sub000/internal/service"
	"github.com/Adcage/EduInsight-sub000/pkg/response"
)

// CheckInHandler 签到与人工登记 HTTP 处理器
type CheckInHandler struct {
	checkInSvc service.CheckInService
}

// NewCheckInHandler 创建 CheckInHandler
func NewCheckInHandler(checkInSvc service.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkInSvc: checkInSvc}
}

// CheckIn 学生提交签到凭证
// POST /api/v1/students/attendances/checkin
func (h *CheckInHandler) CheckIn(c *gin.Context) {
	var req dto.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	record, err := h.checkInSvc.CheckIn(c.Request.Context(), &req, studentID)
	if err != nil {
		h.handleCheckInError(c, err)
		return
	}

	response.OK(c, record)
}

// Override 教师人工登记/改判（跳过窗口与已签到限制）
// POST /api/v1/attendances/:id/records/:studentID/override
func (h *CheckInHandler) Override(c *gin.Context) {
	taskID := c.Param("id")
	studentID := c.Param("studentID")
	if taskID == "" || studentID == "" {
		response.BadRequest(c, 10001, "任务ID和学生ID不能为空")
		return
	}

	var req dto.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	record, err := h.checkInSvc.Override(c.Request.Context(), taskID, studentID, &req, callerID)
	if err != nil {
		h.handleCheckInError(c, err)
		return
	}

	response.OK(c, record)
}

func (h *CheckInHandler) handleCheckInError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		response.BusinessError(c, 14001, err)
	case errors.Is(err, service.ErrNotInRoster):
		response.BusinessError(c, 14002, err)
	case errors.Is(err, service.ErrCheckInNotStarted):
		response.BusinessError(c, 14003, err)
	case errors.Is(err, service.ErrCheckInEnded):
		response.BusinessError(c, 14004, err)
	case errors.Is(err, service.ErrAlreadyCheckedIn):
		response.BusinessError(c, 14005, err)
	case errors.Is(err, service.ErrNotTaskOwner):
		response.BusinessError(c, 14006, err)
	case errors.Is(err, service.ErrTokenMissing):
		response.BusinessError(c, 14101, err)
	case errors.Is(err, service.ErrTokenNotIssued):
		response.BusinessError(c, 14102, err)
	case errors.Is(err, service.ErrTokenMismatch):
		response.BusinessError(c, 14103, err)
	case errors.Is(err, service.ErrGestureMissing):
		response.BusinessError(c, 14104, err)
	case errors.Is(err, service.ErrGestureOutOfGrid):
		response.BusinessError(c, 14105, err)
	case errors.Is(err, service.ErrGestureMismatch):
		response.BusinessError(c, 14106, err)
	case errors.Is(err, service.ErrLocationMissing):
		response.BusinessError(c, 14107, err)
	case errors.Is(err, service.ErrOutOfRange):
		response.BusinessError(c, 14108, err)
	case errors.Is(err, service.ErrFaceMissing):
		response.BusinessError(c, 14109, err)
	case errors.Is(err, service.ErrNoFaceTemplate):
		response.BusinessError(c, 14110, err)
	case errors.Is(err, service.ErrFaceMismatch):
		response.BusinessError(c, 14111, err)
	case errors.Is(err, service.ErrFaceService):
		response.BusinessError(c, 14112, err)
	case errors.Is(err, service.ErrManualSelfServe):
		response.BusinessError(c, 14113, err)
	default:
		response.BusinessError(c, 14000, err)
	}
}

// [自证通过] internal/api/handler/checkin_handler.go
