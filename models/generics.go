package models

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
)

type Resource interface {
	GetBusinessId() string
}

// RedisCleaner is implemented by cached models so mutations can evict their
// list caches.
type RedisCleaner interface {
	CleanRedisItems(businessId string) error
}

// GetResource fetches a single row by id, consulting the redis cache for the
// cacheable types first. Tenant ownership is re-checked after a cache hit
// because cache keys are type+id, not business-scoped.
func GetResource[T Resource](ctx context.Context, businessId string, id int) (*T, error) {
	logger := config.GetLogger()

	var resource T
	key := fmt.Sprintf("%s:%d", utils.GetTypeName[T](), id)

	found, err := config.GetRedisObject(key, &resource)
	if err != nil {
		config.LogError(logger, "models", "GetResource", "redis read", key, err)
	}
	if found {
		if resource.GetBusinessId() != businessId {
			return nil, utils.ErrorRecordNotFound
		}
		return &resource, nil
	}

	fetched, err := utils.FetchModel[T](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[T](*fetched, id); err != nil {
		config.LogError(logger, "models", "GetResource", "redis store", key, err)
	}
	return fetched, nil
}

// ToggleActiveModel flips the IsActive flag on a model that carries one and
// evicts its caches.
func ToggleActiveModel[T RedisCleaner](ctx context.Context, businessId string, id int, isActive bool) (*T, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	model, err := utils.FetchModel[T](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	result := db.WithContext(ctx).Model(model).Where("business_id = ?", businessId).
		Update("is_active", isActive)
	if result.Error != nil {
		config.LogError(logger, "models", "ToggleActiveModel", "update is_active", id, result.Error)
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}

	if err := utils.RemoveRedisItem[T](id); err != nil {
		config.LogError(logger, "models", "ToggleActiveModel", "redis evict", id, err)
	}
	if err := (*model).CleanRedisItems(businessId); err != nil {
		config.LogError(logger, "models", "ToggleActiveModel", "redis list evict", businessId, err)
	}

	return utils.FetchModel[T](ctx, businessId, id)
}

var errMissingBusinessId = errors.New("business id is required")

// requireBusinessId pulls the tenant id out of the request context. Every
// model operation starts here.
func requireBusinessId(ctx context.Context) (string, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return "", errMissingBusinessId
	}
	return businessId, nil
}
