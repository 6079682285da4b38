package requests

// ResolveAddressRequest request resolve địa chỉ đơn lẻ
type ResolveAddressRequest struct {
	Address  string         `json:"address"`            // Địa chỉ cần resolve, rỗng vẫn hợp lệ
	Province string         `json:"province,omitempty"` // Tỉnh biết trước từ form, "/" = không có
	District string         `json:"district,omitempty"` // Quận/huyện biết trước
	Options  ResolveOptions `json:"options,omitempty"`  // Tùy chọn
}

// ResolveOptions tùy chọn resolve
type ResolveOptions struct {
	UseCache    *bool `json:"use_cache,omitempty"`    // Mặc định true
	ReturnTrace bool  `json:"return_trace,omitempty"` // Có trả về trace từng cấp không
}

// CacheEnabled mặc định là dùng cache.
func (o ResolveOptions) CacheEnabled() bool {
	return o.UseCache == nil || *o.UseCache
}

// BatchItem một dòng trong job batch.
type BatchItem struct {
	Address  string `json:"address"`
	Province string `json:"province,omitempty"`
	District string `json:"district,omitempty"`
}

// BatchResolveRequest request resolve hàng loạt địa chỉ
type BatchResolveRequest struct {
	Items   []BatchItem    `json:"items" binding:"required,min=1,max=20000"` // Danh sách địa chỉ (tối đa 20k)
	Options ResolveOptions `json:"options,omitempty"`
}

// AddAliasRequest thêm alias học được cho một đơn vị
type AddAliasRequest struct {
	AdminID    string  `json:"admin_id" binding:"required"`
	Alias      string  `json:"alias" binding:"required"`
	Confidence float64 `json:"confidence,omitempty"`
}

// SubmitReviewRequest người dùng chấm điểm một kết quả
type SubmitReviewRequest struct {
	Address  string `json:"address" binding:"required"`
	Province string `json:"province,omitempty"`
	District string `json:"district,omitempty"`
	Ward     string `json:"ward,omitempty"`
	Rating   int    `json:"rating" binding:"required,min=1,max=5"`
	Comment  string `json:"comment,omitempty"`
}

// ClassifyRequest chạy bộ phân loại chất lượng trên review đã lưu
type ClassifyRequest struct {
	MaxRating int  `json:"max_rating,omitempty"` // Chỉ lấy review có rating <= giá trị này
	Limit     int  `json:"limit,omitempty"`
	Rescore   bool `json:"rescore,omitempty"` // Resolve lại bằng index hiện tại
}
