package store

import (
	"context"

	"gorm.io/gorm/clause"

	"blooddrive-queue-backend/internal/model"
)

// UpsertSubscription creates or refreshes a donor's push subscription,
// keyed by the browser endpoint.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "donor_token"}),
	}).Create(sub).Error
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).
		Delete(&model.PushSubscription{}, "endpoint = ?", endpoint).Error
}

func (s *gormStore) SubscriptionsByToken(ctx context.Context, donorToken string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Where("donor_token = ?", donorToken).
		Find(&subs).Error
	return subs, err
}
