package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	BusinessId string    `gorm:"size:30;index" json:"businessId"`
	Username   string    `gorm:"size:50;uniqueIndex" json:"username"`
	Password   string    `gorm:"size:100" json:"-"`
	Name       string    `gorm:"size:100" json:"name"`
	Role       UserRole  `gorm:"size:20;default:Staff" json:"role"`
	IsActive   *bool     `gorm:"default:true" json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u User) GetBusinessId() string {
	return u.BusinessId
}

type NewUser struct {
	BusinessId string   `json:"businessId" validate:"required"`
	Username   string   `json:"username" validate:"required,max=50"`
	Password   string   `json:"password" validate:"required,min=8"`
	Name       string   `json:"name" validate:"max=100"`
	Role       UserRole `json:"role"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if _, err := GetBusiness(ctx, input.BusinessId); err != nil {
		return nil, errors.New("invalid business id")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		BusinessId: input.BusinessId,
		Username:   input.Username,
		Password:   string(hashed),
		Name:       input.Name,
		Role:       input.Role,
		IsActive:   utils.NewTrue(),
	}
	if user.Role == "" {
		user.Role = UserRoleStaff
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if utils.IsDuplicateEntry(err) {
			return nil, errors.New("username already exists")
		}
		config.LogError(logger, "models", "CreateUser", "create", input.Username, err)
		return nil, err
	}
	return &user, nil
}

// Signin checks the credentials and issues a jwt with a redis-backed
// session.
func Signin(ctx context.Context, username string, password string) (string, *User, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	var user User
	err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, errors.New("invalid username or password")
		}
		config.LogError(logger, "models", "Signin", "first", username, err)
		return "", nil, err
	}
	if user.IsActive == nil || !*user.IsActive {
		return "", nil, errors.New("user is inactive")
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return "", nil, errors.New("invalid username or password")
	}

	token, err := utils.JwtGenerate(user.ID, string(user.Role))
	if err != nil {
		config.LogError(logger, "models", "Signin", "jwt generate", user.ID, err)
		return "", nil, err
	}

	session := map[string]interface{}{
		"userId":     user.ID,
		"businessId": user.BusinessId,
		"username":   user.Username,
		"name":       user.Name,
		"role":       user.Role,
	}
	lifespan := utils.GetCacheLifespan()
	if err := config.SetRedisObject("Token:"+token, session, lifespan); err != nil {
		config.LogError(logger, "models", "Signin", "redis session", user.ID, err)
		return "", nil, err
	}
	return token, &user, nil
}

// Signout drops the redis session for the presented token.
func Signout(ctx context.Context) error {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok {
		return errors.New("no session token")
	}
	return config.RemoveRedisKey("Token:" + token)
}

func GetUser(ctx context.Context, id int) (*User, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	var user User
	err := db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		config.LogError(logger, "models", "GetUser", "first", id, err)
		return nil, err
	}
	return &user, nil
}
