// Package routes gắn controller vào gin router.
//
// Cấu trúc:
//   - api.go: API routes (/v1/*), health và metrics
//   - web.go: Web routes (/, /docs)
package routes

import (
	"net/http"

	"github.com/address-resolver/app/controllers"
)

// Controllers các controller cần đăng ký. Quality có thể nil khi không có MongoDB.
type Controllers struct {
	Address *controllers.AddressController
	Admin   *controllers.AdminController
	Quality *controllers.QualityController
	Metrics http.Handler
}
