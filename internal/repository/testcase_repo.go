package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/caseforge/backend/internal/model"
)

type testCaseRepository struct {
	db *gorm.DB
}

func NewTestCaseRepository(db *gorm.DB) TestCaseRepository {
	return &testCaseRepository{db: db}
}

func (r *testCaseRepository) CreateBatch(cases []model.TestCase) error {
	if len(cases) == 0 {
		return nil
	}
	return r.db.Create(&cases).Error
}

func (r *testCaseRepository) Get(id string) (*model.TestCase, error) {
	var tc model.TestCase
	err := r.db.Where("id = ?", id).First(&tc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tc, nil
}

func (r *testCaseRepository) List(limit, offset int) ([]model.TestCase, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var cases []model.TestCase
	err := r.db.Order("created_at desc").Limit(limit).Offset(offset).Find(&cases).Error
	return cases, err
}

func (r *testCaseRepository) GetByBatch(batchID string) ([]model.TestCase, error) {
	var cases []model.TestCase
	err := r.db.Where("batch_id = ?", batchID).Order("created_at").Find(&cases).Error
	return cases, err
}

func (r *testCaseRepository) GetByFeature(featureID string) ([]model.TestCase, error) {
	var cases []model.TestCase
	err := r.db.Where("feature_id = ?", featureID).Order("created_at").Find(&cases).Error
	return cases, err
}

func (r *testCaseRepository) Delete(id string) error {
	result := r.db.Where("id = ?", id).Delete(&model.TestCase{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *testCaseRepository) DeleteByBatch(batchID string) error {
	return r.db.Where("batch_id = ?", batchID).Delete(&model.TestCase{}).Error
}
