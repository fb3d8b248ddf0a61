package backend

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/ecorecycle/models"
	"github.com/cppla/ecorecycle/utils"
)

const retentionCacheKey = "cache:settings:retention"

var errStatusConflict = errors.New("status already decided")

// NewSubmission is the validated payload persisted by CreateSubmission.
type NewSubmission struct {
	Name           string
	Mobile         string
	Email          string
	Address        string
	ProductDetails string
	ImagePaths     []string
}

// Store is the gorm-backed Tables implementation. Every successful write
// is published on the hub.
type Store struct {
	db          *gorm.DB
	hub         *Hub
	cache       *utils.RedisCache
	defaultDays int
	now         func() time.Time
	onDelete    func(paths []string)
	log         *zap.SugaredLogger
}

// NewStore wires the store. cache may wrap a nil redis client.
func NewStore(db *gorm.DB, hub *Hub, cache *utils.RedisCache, defaultDays int, log *zap.SugaredLogger) *Store {
	if defaultDays <= 0 {
		defaultDays = models.DefaultRetentionDays
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{db: db, hub: hub, cache: cache, defaultDays: defaultDays, now: time.Now, log: log}
}

// ListSubmissions returns submissions newest first.
func (s *Store) ListSubmissions(ctx context.Context, q SubmissionQuery) ([]models.Submission, error) {
	tx := s.db.WithContext(ctx).Model(&models.Submission{})
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	switch {
	case q.MatchEmail != "" && q.MatchMobile != "":
		tx = tx.Where("(mobile = ? OR email = ?)", q.MatchMobile, q.MatchEmail)
	case q.MatchEmail != "":
		tx = tx.Where("email = ?", q.MatchEmail)
	case q.MatchMobile != "":
		tx = tx.Where("mobile = ?", q.MatchMobile)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var out []models.Submission
	if err := tx.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, NewError(KindQuery, "list submissions", "Failed to load submissions", err)
	}
	return out, nil
}

// GetSubmission loads one submission by id.
func (s *Store) GetSubmission(ctx context.Context, id string) (models.Submission, error) {
	var sub models.Submission
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return models.Submission{}, queryErr("get submission", err)
	}
	return sub, nil
}

// UpdateSubmission applies patch to one row. Status changes only succeed
// while the stored status is still pending.
func (s *Store) UpdateSubmission(ctx context.Context, id string, patch SubmissionPatch) (models.Submission, error) {
	if patch.Empty() {
		return models.Submission{}, Validationf("update submission", "Nothing to update")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return models.Submission{}, Validationf("update submission", "Unknown status %q", *patch.Status)
	}

	var before, after models.Submission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{}
		q := tx.Model(&models.Submission{}).Where("id = ?", id)
		if patch.Status != nil {
			if !models.CanTransition(before.Status, *patch.Status) {
				return errStatusConflict
			}
			updates["status"] = *patch.Status
			q = q.Where("status = ?", models.StatusPending)
		}
		if patch.SetAutoDeleteAt {
			if patch.AutoDeleteAt == nil {
				updates["auto_delete_at"] = nil
			} else {
				updates["auto_delete_at"] = *patch.AutoDeleteAt
			}
		}

		res := q.Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if patch.Status != nil && res.RowsAffected == 0 {
			return errStatusConflict
		}
		after = patch.Apply(before)
		return nil
	})
	if err != nil {
		if errors.Is(err, errStatusConflict) {
			return models.Submission{}, NewError(KindQuery, "update submission", "Submission is no longer pending", err)
		}
		return models.Submission{}, queryErr("update submission", err)
	}

	s.hub.Publish(ChangeEvent{Table: TableSubmissions, Type: ChangeUpdate, New: &after, Old: &before})
	return after, nil
}

// DeleteSubmission removes a submission with its image rows and stored files.
func (s *Store) DeleteSubmission(ctx context.Context, id string) error {
	var (
		sub   models.Submission
		paths []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sub, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.SubmissionImage{}).
			Where("submission_id = ?", id).
			Pluck("image_path", &paths).Error; err != nil {
			return err
		}
		if err := tx.Where("submission_id = ?", id).Delete(&models.SubmissionImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Submission{}, "id = ?", id).Error
	})
	if err != nil {
		return queryErr("delete submission", err)
	}

	if sub.ImagePath != "" && !slices.Contains(paths, sub.ImagePath) {
		paths = append(paths, sub.ImagePath)
	}
	if s.onDelete != nil && len(paths) > 0 {
		s.onDelete(paths)
	}
	s.hub.Publish(ChangeEvent{Table: TableSubmissions, Type: ChangeDelete, Old: &sub})
	return nil
}

// ListImages returns a submission's images by ascending position.
func (s *Store) ListImages(ctx context.Context, submissionID string) ([]models.SubmissionImage, error) {
	var images []models.SubmissionImage
	err := s.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("position ASC").
		Find(&images).Error
	if err != nil {
		return nil, NewError(KindQuery, "list images", "Failed to load images", err)
	}
	return images, nil
}

// GetRetentionSetting reads the settings row, served from Redis when cached.
// A missing row yields the configured default.
func (s *Store) GetRetentionSetting(ctx context.Context) (models.RetentionSetting, error) {
	var setting models.RetentionSetting
	if s.cache.GetJSON(retentionCacheKey, &setting) {
		return setting, nil
	}

	err := s.db.WithContext(ctx).First(&setting, models.RetentionSettingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RetentionSetting{ID: models.RetentionSettingID, DefaultRetentionDays: s.defaultDays}, nil
	}
	if err != nil {
		return models.RetentionSetting{}, NewError(KindQuery, "get retention setting", "Failed to load retention setting", err)
	}
	s.cache.SetJSON(retentionCacheKey, setting, 0)
	return setting, nil
}

// SetDefaultRetention stores the default horizon. Existing submissions keep theirs.
func (s *Store) SetDefaultRetention(ctx context.Context, days int) error {
	setting := models.RetentionSetting{ID: models.RetentionSettingID, DefaultRetentionDays: days, UpdatedAt: s.now()}
	err := s.db.WithContext(ctx).Save(&setting).Error
	if err != nil {
		return err
	}
	s.cache.Invalidate(retentionCacheKey)
	return nil
}

// SetSubmissionRetention sets one submission's auto-delete time to now + days.
func (s *Store) SetSubmissionRetention(ctx context.Context, id string, days int) (time.Time, error) {
	at := s.now().Add(time.Duration(days) * 24 * time.Hour)
	if _, err := s.UpdateSubmission(ctx, id, AutoDeletePatch(&at)); err != nil {
		return time.Time{}, err
	}
	return at, nil
}

// CreateSubmission inserts a pending submission and its images in one transaction.
// The first path becomes the cover. With applyDefault the auto-delete time is
// set from the current default retention.
func (s *Store) CreateSubmission(ctx context.Context, in NewSubmission, applyDefault bool) (models.Submission, error) {
	sub := models.Submission{
		Status:         models.StatusPending,
		Name:           in.Name,
		Mobile:         in.Mobile,
		Email:          in.Email,
		Address:        in.Address,
		ProductDetails: in.ProductDetails,
		CreatedAt:      s.now(),
	}
	if len(in.ImagePaths) > 0 {
		sub.ImagePath = in.ImagePaths[0]
	}
	if applyDefault {
		setting, err := s.GetRetentionSetting(ctx)
		if err != nil {
			return models.Submission{}, err
		}
		at := sub.CreatedAt.Add(time.Duration(setting.DefaultRetentionDays) * 24 * time.Hour)
		sub.AutoDeleteAt = &at
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sub).Error; err != nil {
			return err
		}
		if len(in.ImagePaths) == 0 {
			return nil
		}
		images := make([]models.SubmissionImage, 0, len(in.ImagePaths))
		for i, p := range in.ImagePaths {
			images = append(images, models.SubmissionImage{
				SubmissionID: sub.ID,
				ImagePath:    p,
				Position:     i,
				CreatedAt:    sub.CreatedAt,
			})
		}
		return tx.Create(&images).Error
	})
	if err != nil {
		return models.Submission{}, NewError(KindProcedure, "create submission", "Failed to save submission", err)
	}

	s.hub.Publish(ChangeEvent{Table: TableSubmissions, Type: ChangeInsert, New: &sub})
	return sub, nil
}

// ExpiredIDs lists submissions whose auto-delete time is at or before now.
func (s *Store) ExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Submission{}).
		Where("auto_delete_at IS NOT NULL AND auto_delete_at <= ?", now).
		Order("auto_delete_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func queryErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewError(KindQuery, op, "Submission not found", ErrNotFound)
	}
	return NewError(KindQuery, op, "Database request failed", err)
}
