package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/milifusa/mumpabackend-sub000/internal"
	"github.com/milifusa/mumpabackend-sub000/internal/storage"
)

var ErrMissingBirthData = errors.New("service: child requires a birth_date or gestation_weeks")

type ChildRequest struct {
	Name           string     `json:"name" validate:"required"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	IsUnborn       bool       `json:"is_unborn"`
	GestationWeeks int        `json:"gestation_weeks,omitempty" validate:"gte=0,lte=45"`
}

func ValidateChildRequest(req *ChildRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if req.BirthDate == nil && !(req.IsUnborn && req.GestationWeeks > 0) {
		return ErrMissingBirthData
	}
	return nil
}

func CreateChild(ctx context.Context, children storage.ChildRepository, user *internal.User, req *ChildRequest) (*internal.ChildProfile, error) {
	child := &internal.ChildProfile{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		Name:           req.Name,
		BirthDate:      req.BirthDate,
		IsUnborn:       req.IsUnborn,
		GestationWeeks: req.GestationWeeks,
		CreatedAt:      time.Now(),
	}
	if err := children.SaveChild(ctx, child); err != nil {
		return nil, err
	}
	return child, nil
}
