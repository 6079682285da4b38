package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/address-resolver/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	adminUnitsCollection     = "admin_units"
	learnedAliasesCollection = "learned_aliases"
	addressReviewCollection  = "address_review"
)

// ErrNoReference chưa có phiên bản admin_units nào trong storage.
var ErrNoReference = errors.New("chưa có dữ liệu tham chiếu")

// ReferenceStore lưu các row admin_units và alias học được.
type ReferenceStore interface {
	ReplaceUnits(ctx context.Context, version string, units []models.AdminUnit) (int64, error)
	LoadUnits(ctx context.Context, version string) ([]models.AdminUnit, error)
	LatestVersion(ctx context.Context) (string, error)
	LearnedAliases(ctx context.Context) ([]models.LearnedAliases, error)
	SaveLearnedAlias(ctx context.Context, alias *models.LearnedAliases) error
	Counts(ctx context.Context) (*DatabaseStats, error)
}

// ReviewStore lưu các review có rating.
type ReviewStore interface {
	SaveReview(ctx context.Context, review *models.AddressReview) error
	LowRatedReviews(ctx context.Context, maxRating int, limit int) ([]models.AddressReview, error)
}

// DatabaseStats thống kê database
type DatabaseStats struct {
	AdminUnits     int64 `json:"admin_units"`
	AddressCache   int64 `json:"address_cache"`
	AddressReview  int64 `json:"address_review"`
	LearnedAliases int64 `json:"learned_aliases"`
}

// MongoStore cài đặt ReferenceStore và ReviewStore trên MongoDB.
type MongoStore struct {
	db     *mongo.Database
	logger *zap.Logger
}

// NewMongoStore tạo mới MongoStore
func NewMongoStore(db *mongo.Database, logger *zap.Logger) *MongoStore {
	return &MongoStore{db: db, logger: logger}
}

// DB database bên dưới, dùng chung cho cache Mongo.
func (ms *MongoStore) DB() *mongo.Database {
	return ms.db
}

// EnsureIndexes tạo indexes cho các collection
func (ms *MongoStore) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		adminUnitsCollection: {
			{Keys: bson.D{{Key: "gazetteer_version", Value: 1}, {Key: "admin_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		learnedAliasesCollection: {
			{Keys: bson.D{{Key: "admin_id", Value: 1}, {Key: "canonical_form", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		addressReviewCollection: {
			{Keys: bson.D{{Key: "rating", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	var errs []error
	for name, indexes := range specs {
		if _, err := ms.db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// ReplaceUnits thay toàn bộ row của một phiên bản
func (ms *MongoStore) ReplaceUnits(ctx context.Context, version string, units []models.AdminUnit) (int64, error) {
	collection := ms.db.Collection(adminUnitsCollection)

	deleteResult, err := collection.DeleteMany(ctx, bson.M{"gazetteer_version": version})
	if err != nil {
		return 0, fmt.Errorf("lỗi xóa dữ liệu cũ: %w", err)
	}
	ms.logger.Info("Deleted old admin units",
		zap.String("gazetteer_version", version),
		zap.Int64("deleted_count", deleteResult.DeletedCount))

	if len(units) == 0 {
		return 0, nil
	}
	documents := make([]interface{}, len(units))
	for i := range units {
		units[i].GazetteerVersion = version
		documents[i] = units[i]
	}
	result, err := collection.InsertMany(ctx, documents)
	if err != nil {
		return 0, fmt.Errorf("lỗi insert dữ liệu mới: %w", err)
	}
	return int64(len(result.InsertedIDs)), nil
}

// LoadUnits đọc các row của một phiên bản
func (ms *MongoStore) LoadUnits(ctx context.Context, version string) ([]models.AdminUnit, error) {
	opts := options.Find().SetSort(bson.D{{Key: "level", Value: 1}, {Key: "admin_id", Value: 1}})
	cursor, err := ms.db.Collection(adminUnitsCollection).Find(ctx, bson.M{"gazetteer_version": version}, opts)
	if err != nil {
		return nil, fmt.Errorf("lỗi query admin_units: %w", err)
	}
	defer cursor.Close(ctx)

	var units []models.AdminUnit
	if err := cursor.All(ctx, &units); err != nil {
		return nil, fmt.Errorf("lỗi decode admin_units: %w", err)
	}
	return units, nil
}

// LatestVersion phiên bản được seed gần nhất
func (ms *MongoStore) LatestVersion(ctx context.Context) (string, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"gazetteer_version": 1})

	var unit models.AdminUnit
	err := ms.db.Collection(adminUnitsCollection).FindOne(ctx, bson.M{}, opts).Decode(&unit)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNoReference
	}
	if err != nil {
		return "", fmt.Errorf("lỗi lấy phiên bản mới nhất: %w", err)
	}
	return unit.GazetteerVersion, nil
}

// LearnedAliases đọc toàn bộ alias đã học
func (ms *MongoStore) LearnedAliases(ctx context.Context) ([]models.LearnedAliases, error) {
	cursor, err := ms.db.Collection(learnedAliasesCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("lỗi lấy learned_aliases: %w", err)
	}
	defer cursor.Close(ctx)

	var aliases []models.LearnedAliases
	for cursor.Next(ctx) {
		var alias models.LearnedAliases
		if err := cursor.Decode(&alias); err != nil {
			ms.logger.Warn("Lỗi decode learned alias", zap.Error(err))
			continue
		}
		aliases = append(aliases, alias)
	}
	return aliases, cursor.Err()
}

// SaveLearnedAlias upsert theo (admin_id, canonical_form)
func (ms *MongoStore) SaveLearnedAlias(ctx context.Context, alias *models.LearnedAliases) error {
	filter := bson.M{"admin_id": alias.AdminID, "canonical_form": alias.CanonicalForm}
	_, err := ms.db.Collection(learnedAliasesCollection).ReplaceOne(ctx, filter, alias, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("lỗi lưu learned alias: %w", err)
	}
	return nil
}

// Counts đếm document mỗi collection
func (ms *MongoStore) Counts(ctx context.Context) (*DatabaseStats, error) {
	stats := &DatabaseStats{}
	targets := []struct {
		name string
		dst  *int64
	}{
		{adminUnitsCollection, &stats.AdminUnits},
		{addressCacheCollection, &stats.AddressCache},
		{addressReviewCollection, &stats.AddressReview},
		{learnedAliasesCollection, &stats.LearnedAliases},
	}
	for _, target := range targets {
		count, err := ms.db.Collection(target.name).EstimatedDocumentCount(ctx)
		if err != nil {
			return nil, fmt.Errorf("lỗi đếm %s: %w", target.name, err)
		}
		*target.dst = count
	}
	return stats, nil
}

// SaveReview lưu review
func (ms *MongoStore) SaveReview(ctx context.Context, review *models.AddressReview) error {
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}
	if _, err := ms.db.Collection(addressReviewCollection).InsertOne(ctx, review); err != nil {
		return fmt.Errorf("lỗi lưu review: %w", err)
	}
	return nil
}

// LowRatedReviews các review có rating <= maxRating, mới nhất trước
func (ms *MongoStore) LowRatedReviews(ctx context.Context, maxRating int, limit int) ([]models.AddressReview, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := ms.db.Collection(addressReviewCollection).Find(ctx, bson.M{"rating": bson.M{"$lte": maxRating}}, opts)
	if err != nil {
		return nil, fmt.Errorf("lỗi query address_review: %w", err)
	}
	defer cursor.Close(ctx)

	var reviews []models.AddressReview
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("lỗi decode address_review: %w", err)
	}
	return reviews, nil
}
