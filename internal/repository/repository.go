package repository

import (
	"errors"

	"github.com/caseforge/backend/internal/model"
)

var ErrNotFound = errors.New("record not found")

type TestCaseRepository interface {
	CreateBatch(cases []model.TestCase) error
	Get(id string) (*model.TestCase, error)
	List(limit, offset int) ([]model.TestCase, error)
	GetByBatch(batchID string) ([]model.TestCase, error)
	GetByFeature(featureID string) ([]model.TestCase, error)
	Delete(id string) error
	DeleteByBatch(batchID string) error
}
