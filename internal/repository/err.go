package repository

import (
	"errors"

	"github.com/yz4230/deployhook/internal/entity"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = gorm.ErrRecordNotFound
	ErrDuplicate = gorm.ErrDuplicatedKey
)

func toEntityErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return entity.ErrNotFound
	}
	return err
}
