package repo

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/domain"
)

// CouponRepo is a read-only view over the coupon collection maintained by the
// catalog side.
type CouponRepo interface {
	FindByCode(ctx context.Context, code string) (*domain.Coupon, error)
}

type couponRepo struct {
	coll *mongo.Collection
}

func NewCouponRepo(db *mongo.Database) CouponRepo {
	return &couponRepo{coll: db.Collection("coupons")}
}

type couponDocument struct {
	Code     string  `bson:"code"`
	Discount float64 `bson:"discount"`
}

// FindByCode matches code case-insensitively; codes are stored upper-cased.
func (r *couponRepo) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	code = domain.NormalizeCouponCode(code)
	if code == "" {
		return nil, domain.ErrNotFound
	}

	var doc couponDocument
	err := r.coll.FindOne(ctx, bson.M{"code": code}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Coupon{
		Code:     doc.Code,
		Discount: decimal.NewFromFloat(doc.Discount),
	}, nil
}
