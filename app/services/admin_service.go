package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/gazetteer"
	"github.com/address-resolver/internal/parser"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedExport = errors.New("không hỗ trợ loại dữ liệu hoặc format này")
	ErrNoStore           = errors.New("chưa cấu hình MongoDB")
	ErrNoPublisher       = errors.New("chưa cấu hình Meilisearch")
	ErrUnknownUnit       = errors.New("không tìm thấy đơn vị hành chính")
)

// Publisher đẩy index lên công cụ tìm kiếm.
type Publisher interface {
	Publish(idx *gazetteer.Index) (int, error)
}

// AdminService service quản lý dữ liệu tham chiếu
type AdminService struct {
	store          ReferenceStore
	publisher      Publisher
	addressService *AddressService
	resolverCfg    parser.ResolverConfig
	minAliasConf   float64
	logger         *zap.Logger
	startTime      time.Time
}

// ReferenceValidation kết quả kiểm tra snapshot
type ReferenceValidation struct {
	Passed             bool            `json:"passed"`
	Warnings           []string        `json:"warnings"`
	Stats              gazetteer.Stats `json:"stats"`
	EstimatedBuildTime string          `json:"estimated_build_time"`
}

// SeedResult kết quả seed dữ liệu tham chiếu
type SeedResult struct {
	Version          string `json:"version"`
	UnitsProcessed   int    `json:"units_processed"`
	DocumentsIndexed int    `json:"documents_indexed"`
	CacheInvalidated int64  `json:"cache_invalidated"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	DryRun           bool   `json:"dry_run"`
}

// SystemStats thống kê hệ thống
type SystemStats struct {
	Reference      gazetteer.Stats        `json:"reference"`
	TotalProcessed int64                  `json:"total_processed"`
	Uptime         string                 `json:"uptime"`
	MemoryUsage    map[string]interface{} `json:"memory_usage"`
	Cache          *CacheStats            `json:"cache,omitempty"`
	DatabaseStats  *DatabaseStats         `json:"database_stats,omitempty"`
}

// NewAdminService tạo mới AdminService. store và publisher có thể nil.
func NewAdminService(store ReferenceStore, publisher Publisher, addressService *AddressService, resolverCfg parser.ResolverConfig, minAliasConf float64, logger *zap.Logger) *AdminService {
	return &AdminService{
		store:          store,
		publisher:      publisher,
		addressService: addressService,
		resolverCfg:    resolverCfg,
		minAliasConf:   minAliasConf,
		logger:         logger,
		startTime:      time.Now(),
	}
}

// ValidateReference dựng thử index từ snapshot, không ghi gì.
func (as *AdminService) ValidateReference(snap *gazetteer.Snapshot) *ReferenceValidation {
	start := time.Now()
	idx, err := snap.Index()
	if err != nil {
		return &ReferenceValidation{
			Passed:             false,
			Warnings:           flattenErrors(err),
			EstimatedBuildTime: "0s",
		}
	}
	return &ReferenceValidation{
		Passed:             true,
		Warnings:           make([]string, 0),
		Stats:              idx.Stats(),
		EstimatedBuildTime: time.Since(start).Round(time.Millisecond).String(),
	}
}

// flattenErrors tách lỗi gộp của Builder thành từng dòng
func flattenErrors(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if e == gazetteer.ErrReferenceLoad {
			return
		}
		if multi, ok := e.(interface{ Unwrap() []error }); ok {
			for _, child := range multi.Unwrap() {
				walk(child)
			}
			return
		}
		out = append(out, e.Error())
	}
	walk(err)
	return out
}

// SeedReference kiểm tra snapshot, ghi vào admin_units, nạp lại resolver và tùy chọn publish.
func (as *AdminService) SeedReference(ctx context.Context, snap *gazetteer.Snapshot, dryRun, publish bool) (*SeedResult, error) {
	start := time.Now()

	idx, err := snap.Index()
	if err != nil {
		return nil, err
	}
	version := idx.Version()
	result := &SeedResult{Version: version, DryRun: dryRun}
	units := models.AdminUnitsFromSnapshot(snap, version)
	result.UnitsProcessed = len(units)

	if dryRun {
		result.ProcessingTimeMs = time.Since(start).Milliseconds()
		return result, nil
	}

	if as.store != nil {
		if _, err := as.store.ReplaceUnits(ctx, version, units); err != nil {
			return nil, err
		}
		idx, err = as.LoadReferenceIndex(ctx)
		if err != nil {
			return nil, err
		}
	}

	result.CacheInvalidated = as.swap(ctx, idx)

	if publish {
		n, err := as.publish(idx)
		if err != nil {
			as.logger.Warn("Lỗi publish Meilisearch", zap.Error(err))
		}
		result.DocumentsIndexed = n
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	as.logger.Info("Reference seed completed",
		zap.String("reference_version", idx.Version()),
		zap.Int("units_processed", result.UnitsProcessed),
		zap.Int("documents_indexed", result.DocumentsIndexed),
		zap.Duration("processing_time", time.Since(start)))
	return result, nil
}

// LoadReferenceIndex dựng index từ phiên bản mới nhất trong storage cộng alias học được đủ tin cậy.
func (as *AdminService) LoadReferenceIndex(ctx context.Context) (*gazetteer.Index, error) {
	if as.store == nil {
		return nil, ErrNoStore
	}
	version, err := as.store.LatestVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", gazetteer.ErrReferenceLoad, err)
	}
	units, err := as.store.LoadUnits(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", gazetteer.ErrReferenceLoad, err)
	}
	aliases, err := as.store.LearnedAliases(ctx)
	if err != nil {
		as.logger.Warn("Không đọc được learned_aliases, bỏ qua", zap.Error(err))
	}

	return BuildReferenceIndex(version, units, aliases, as.minAliasConf)
}

// BuildReferenceIndex dựng index từ row admin_units và alias học được.
// Alias làm thay đổi phiên bản để cache của phiên bản cũ không bị dùng lại.
func BuildReferenceIndex(version string, units []models.AdminUnit, aliases []models.LearnedAliases, minConf float64) (*gazetteer.Index, error) {
	known := make(map[string]bool, len(units))
	for i := range units {
		known[units[i].AdminID] = true
	}

	// alias trỏ tới đơn vị đã bị xóa khỏi phiên bản này thì bỏ qua
	var accepted []*models.LearnedAliases
	for i := range aliases {
		if known[aliases[i].AdminID] && aliases[i].IsHighConfidence(minConf) && aliases[i].IsValidAdminLevel() {
			accepted = append(accepted, &aliases[i])
		}
	}
	if len(accepted) > 0 {
		version = version + "+aliases." + strconv.Itoa(len(accepted))
	}

	b := gazetteer.NewBuilder(version)
	for i := range units {
		b.Add(units[i].ToRow())
	}
	for _, la := range accepted {
		b.AddAlias(la.AdminID, la.OriginalToken)
	}
	return b.Build()
}

func (as *AdminService) swap(ctx context.Context, idx *gazetteer.Index) int64 {
	if as.addressService == nil {
		return 0
	}
	old := as.addressService.ReferenceVersion()
	as.addressService.SwapResolver(parser.NewResolver(idx, as.resolverCfg, as.logger))
	if old == idx.Version() {
		return 0
	}
	n, err := as.addressService.InvalidateCache(ctx, old)
	if err != nil {
		as.logger.Warn("Lỗi invalidate cache phiên bản cũ", zap.String("version", old), zap.Error(err))
	}
	return n
}

// Reload nạp lại index từ storage và thay resolver đang phục vụ.
func (as *AdminService) Reload(ctx context.Context) (gazetteer.Stats, error) {
	idx, err := as.LoadReferenceIndex(ctx)
	if err != nil {
		return gazetteer.Stats{}, err
	}
	as.swap(ctx, idx)
	return idx.Stats(), nil
}

// PublishIndex đẩy index đang phục vụ lên Meilisearch
func (as *AdminService) PublishIndex(ctx context.Context) (int, error) {
	return as.publish(as.addressService.Resolver().Index())
}

func (as *AdminService) publish(idx *gazetteer.Index) (int, error) {
	if as.publisher == nil {
		return 0, ErrNoPublisher
	}
	return as.publisher.Publish(idx)
}

// AddAlias lưu alias thủ công cho một đơn vị. Có hiệu lực ở lần Reload tiếp theo.
func (as *AdminService) AddAlias(ctx context.Context, adminID, alias string, confidence float64) (*models.LearnedAliases, error) {
	if as.store == nil {
		return nil, ErrNoStore
	}
	entity, ok := as.addressService.Resolver().Index().EntityByID(adminID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, adminID)
	}

	la := models.NewLearnedAliases(alias, entity.Level, entity.ID, models.SourceManual)
	if confidence > 0 {
		la.UpdateConfidence(confidence)
	}
	if err := as.store.SaveLearnedAlias(ctx, la); err != nil {
		return nil, err
	}
	as.logger.Info("Đã lưu alias",
		zap.String("admin_id", adminID),
		zap.String("alias", la.CanonicalForm),
		zap.Float64("confidence", la.Confidence))
	return la, nil
}

// GetReferenceInfo thống kê index đang phục vụ
func (as *AdminService) GetReferenceInfo() gazetteer.Stats {
	return as.addressService.Resolver().Index().Stats()
}

// GetSystemStats lấy thống kê hệ thống
func (as *AdminService) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &SystemStats{
		Reference: as.GetReferenceInfo(),
		Uptime:    time.Since(as.startTime).Round(time.Second).String(),
		MemoryUsage: map[string]interface{}{
			"alloc_mb":       bToMb(m.Alloc),
			"total_alloc_mb": bToMb(m.TotalAlloc),
			"sys_mb":         bToMb(m.Sys),
			"num_gc":         m.NumGC,
			"goroutines":     runtime.NumGoroutine(),
		},
	}
	if svc := as.addressService; svc != nil {
		stats.TotalProcessed = svc.processed.Load()
		if svc.cache != nil {
			cacheStats, err := svc.cache.GetStats(ctx)
			if err == nil {
				stats.Cache = cacheStats
			}
		}
	}
	if as.store != nil {
		dbStats, err := as.store.Counts(ctx)
		if err != nil {
			return nil, fmt.Errorf("lỗi lấy database stats: %w", err)
		}
		stats.DatabaseStats = dbStats
	}
	return stats, nil
}

// ExportData export dữ liệu để backup. Trả về nội dung và content type.
func (as *AdminService) ExportData(ctx context.Context, dataType, format string, limit int) ([]byte, string, error) {
	var header []string
	var rows [][]string
	var payload interface{}

	switch dataType {
	case "admin_units":
		units := exportUnits(as.addressService.Resolver().Index(), limit)
		payload = units
		header = []string{"id", "parent_id", "level", "name", "display", "subtype", "aliases"}
		for _, e := range units {
			rows = append(rows, []string{e.ID, e.ParentID, e.Level.String(), e.Name, e.Display, e.Subtype, strings.Join(e.Aliases, "|")})
		}
	case "learned_aliases":
		if as.store == nil {
			return nil, "", ErrNoStore
		}
		aliases, err := as.store.LearnedAliases(ctx)
		if err != nil {
			return nil, "", err
		}
		if limit > 0 && len(aliases) > limit {
			aliases = aliases[:limit]
		}
		payload = aliases
		header = []string{"original_token", "canonical_form", "admin_level", "admin_id", "confidence", "source", "usage_count"}
		for _, la := range aliases {
			rows = append(rows, []string{
				la.OriginalToken, la.CanonicalForm, strconv.Itoa(la.AdminLevel), la.AdminID,
				strconv.FormatFloat(la.Confidence, 'f', 2, 64), la.Source, strconv.Itoa(la.UsageCount),
			})
		}
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedExport, dataType)
	}

	switch format {
	case "", "json":
		data, err := json.MarshalIndent(payload, "", "  ")
		return data, "application/json", err
	case "csv":
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(header); err != nil {
			return nil, "", err
		}
		if err := w.WriteAll(rows); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("%w: format %s", ErrUnsupportedExport, format)
	}
}

func exportUnits(idx *gazetteer.Index, limit int) []*gazetteer.Entity {
	var all []*gazetteer.Entity
	all = append(all, idx.Provinces()...)
	all = append(all, idx.Districts()...)
	all = append(all, idx.Wards()...)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
