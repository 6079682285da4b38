package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID tạo UUID v4
func GenerateUUID() string {
	return uuid.NewString()
}

// GenerateJobID ID cho batch job, có tiền tố để dễ grep log
func GenerateJobID() string {
	return "job_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GenerateShortID tạo ID ngắn (8 ký tự)
func GenerateShortID() string {
	return uuid.NewString()[:8]
}

// IsValidUUID kiểm tra chuỗi có phải UUID hợp lệ không
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
