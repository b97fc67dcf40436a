package mongodb

import (
	"context"
	"fmt"
	"time"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type settingRepository struct {
	collection *mongo.Collection
}

func NewSettingRepository(db *mongo.Database) interfaces.SettingRepository {
	return &settingRepository{
		collection: db.Collection("affiliate_settings"),
	}
}

func (r *settingRepository) Get(ctx context.Context) (*models.AffiliateSetting, error) {
	var setting models.AffiliateSetting
	err := r.collection.FindOne(ctx, bson.M{"key": models.AffiliateSettingKey}).Decode(&setting)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get affiliate settings: %w", err)
	}

	return &setting, nil
}

func (r *settingRepository) Upsert(ctx context.Context, setting *models.AffiliateSetting) error {
	setting.Key = models.AffiliateSettingKey
	setting.UpdatedAt = time.Now()

	update := bson.M{"$set": bson.M{
		"key":                      setting.Key,
		"commission_tiers":         setting.CommissionTiers,
		"ggg_multipliers_enabled":  setting.GGGMultipliersEnabled,
		"ggg_multiplier_tiers":     setting.GGGMultiplierTiers,
		"rp_multipliers_enabled":   setting.RPMultipliersEnabled,
		"rp_multiplier_tiers":      setting.RPMultiplierTiers,
		"signup_bonus_ggg":         setting.SignupBonusGGG,
		"attribution_window_days":  setting.AttributionWindowDays,
		"commission_duration_days": setting.CommissionDurationDays,
		"promotion":                setting.Promotion,
		"updated_at":               setting.UpdatedAt,
	}}

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"key": models.AffiliateSettingKey},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert affiliate settings: %w", err)
	}

	return nil
}
