package models

import (
	"context"
	"errors"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pqpsoft/tracker_backend/config"
	"github.com/pqpsoft/tracker_backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultResourcePassword is assigned when an admin creates a resource
// without an explicit password.
const DefaultResourcePassword = "123456"

type User struct {
	ID         int        `gorm:"primary_key" json:"id"`
	Username   string     `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name       string     `gorm:"size:100;not null" json:"name" binding:"required"`
	Email      *string    `gorm:"size:100;unique" json:"email"`
	Password   string     `gorm:"size:255;not null" json:"password,omitempty"`
	IsActive   *bool      `gorm:"not null" json:"is_active"`
	IsAdmin    *bool      `gorm:"not null;default:false" json:"is_admin"`
	Role       UserRole   `gorm:"type:enum('ENG', 'SUPV');default:ENG" json:"role"`
	DutyStatus DutyStatus `gorm:"type:enum('ON_DUTY', 'OFF_DUTY');default:OFF_DUTY" json:"duty_status"`
	Site       Site       `gorm:"type:enum('PQP_HT', 'MT1');default:PQP_HT" json:"site"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username   string     `json:"username" binding:"required"`
	Name       string     `json:"name" binding:"required"`
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	IsActive   *bool      `json:"is_active"`
	Role       UserRole   `json:"role"`
	DutyStatus DutyStatus `json:"duty_status"`
	Site       Site       `json:"site"`
}

/*
caches:
	User:$username
	Tokens:$username (set of live session tokens)
	Token:$token => username
*/

func (user User) RemoveInstanceRedis() error {
	if err := config.RemoveRedisKey("User:" + user.Username); err != nil {
		return err
	}
	return nil
}

type LoginInfo struct {
	Token   string   `json:"token"`
	UserId  int      `json:"user_id"`
	Name    string   `json:"name"`
	Role    UserRole `json:"role"`
	IsAdmin bool     `json:"is_admin"`
	Jwt     string   `json:"jwt"`
}

func (result *User) PrepareGive() {
	result.Password = ""
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	err := config.RemoveRedisKey("Token:" + token)
	if err != nil {
		return false, nil
	}
	// remove current token from tokens list
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return false, errors.New("user not found")
	}
	if err := config.RemoveRedisSetMember("Tokens:"+username, token); err != nil {
		return false, err
	}
	return true, nil
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {

	db := config.GetDB()
	var err error
	var result LoginInfo

	user := User{}

	// get User info
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return &result, err
	}
	if !exists {
		err = db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error
		if err != nil {
			return &result, errors.New("invalid username or password")
		}
	}

	// check login credentials
	err = utils.ComparePassword(user.Password, password)
	if err != nil && err == bcrypt.ErrMismatchedHashAndPassword {
		return &result, errors.New("invalid username or password")
	}

	if user.IsActive != nil && !*user.IsActive {
		return &result, errors.New("user is disabled")
	}

	isAdmin := user.IsAdmin != nil && *user.IsAdmin

	// generate token & response
	token := uuid.New()
	result.Token = token.String()
	result.UserId = user.ID
	result.Name = user.Username
	result.Role = user.Role
	result.IsAdmin = isAdmin

	jwtToken, err := utils.JwtGenerate(user.ID, string(user.Role), isAdmin)
	if err != nil {
		return &result, err
	}
	result.Jwt = jwtToken

	// store token in redis
	tokenLifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		tokenLifespan = 24
	}

	// add new token to the user's tokens set
	if err := config.AddRedisSet("Tokens:"+user.Username, token.String()); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue("Token:"+token.String(), user.Username, time.Duration(tokenLifespan)*time.Hour); err != nil {
		return &result, err
	}

	return &result, nil
}

func GetAllUsers(ctx context.Context) ([]*User, error) {

	db := config.GetDB()
	var results []*User

	if err := db.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return results, err
	}

	for i, u := range results {
		u.Password = ""
		results[i] = u
	}

	return results, nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	db := config.GetDB()
	var count int64

	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return &User{}, errors.New("invalid email address")
	}

	err := db.WithContext(ctx).Model(&User{}).Where("username = ?", input.Username).Count(&count).Error
	if err != nil {
		return &User{}, err
	}
	if count > 0 {
		return &User{}, errors.New("duplicate username")
	}

	password := input.Password
	if password == "" {
		password = DefaultResourcePassword
	}
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return &User{}, err
	}

	role := input.Role
	if role == "" {
		role = UserRoleEngineer
	}
	dutyStatus := input.DutyStatus
	if dutyStatus == "" {
		dutyStatus = DutyStatusOffDuty
	}
	site := input.Site
	if site == "" {
		site = SitePqpHt
	}
	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}

	var email *string
	if input.Email != "" {
		lowered := strings.ToLower(input.Email)
		email = &lowered
	}

	user := User{
		Username:   html.EscapeString(strings.TrimSpace(input.Username)),
		Name:       input.Name,
		Email:      email,
		Password:   string(hashedPassword),
		IsActive:   isActive,
		IsAdmin:    utils.NewFalse(),
		Role:       role,
		DutyStatus: dutyStatus,
		Site:       site,
	}

	err = db.WithContext(ctx).Create(&user).Error
	if err != nil {
		return &User{}, err
	}
	user.Password = ""
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {

	db := config.GetDB()
	var result User

	err := db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		return &result, utils.ErrorRecordNotFound
	}

	result.PrepareGive()

	return &result, nil
}

type UpdateUserInput struct {
	Name       *string     `json:"name"`
	Email      *string     `json:"email"`
	IsActive   *bool       `json:"is_active"`
	Role       *UserRole   `json:"role"`
	DutyStatus *DutyStatus `json:"duty_status"`
	Site       *Site       `json:"site"`
}

// UpdateUser patches the roster fields an admin can edit. Duty status flips
// here are what the headcount sampler observes at 23:59.
func UpdateUser(ctx context.Context, id int, input *UpdateUserInput) (*User, error) {

	db := config.GetDB()
	var user User

	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Email != nil {
		updates["email"] = strings.ToLower(*input.Email)
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.Role != nil {
		updates["role"] = *input.Role
	}
	if input.DutyStatus != nil {
		updates["duty_status"] = *input.DutyStatus
	}
	if input.Site != nil {
		updates["site"] = *input.Site
	}
	if len(updates) == 0 {
		user.PrepareGive()
		return &user, nil
	}

	if err := db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := user.RemoveInstanceRedis(); err != nil {
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

func DeleteUser(ctx context.Context, id int) (*User, error) {

	db := config.GetDB()
	var user User

	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	if err := db.WithContext(ctx).Delete(&user).Error; err != nil {
		return nil, err
	}
	if err := user.DestroyAllSessions(ctx); err != nil {
		return nil, err
	}
	if err := user.RemoveInstanceRedis(); err != nil {
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

func (user *User) DestroyAllSessions(ctx context.Context) error {
	allTokens, err := config.GetRedisSetMembers("Tokens:" + user.Username)
	if err != nil {
		return err
	}
	for _, token := range allTokens {
		if err := config.RemoveRedisKey("Token:" + token); err != nil {
			return err
		}
	}
	if err := config.RemoveRedisKey("Tokens:" + user.Username); err != nil {
		return err
	}

	return nil
}

func ChangePassword(ctx context.Context, oldPassword string, newPassword string) (*User, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}

	var user User
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&user, userId).Error; err != nil {
		return nil, err
	}
	// check oldPassword
	if err := utils.ComparePassword(user.Password, oldPassword); err != nil {
		return nil, errors.New("old password is wrong")
	}

	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&user).Update("password", string(hashedPassword)).Error; err != nil {
		return nil, err
	}

	// force re-login everywhere
	if err := user.DestroyAllSessions(ctx); err != nil {
		return nil, err
	}
	if err := user.RemoveInstanceRedis(); err != nil {
		return nil, err
	}

	user.PrepareGive()
	return &user, nil
}

// CountOnDutyUsers returns the number of active on-duty users at a site.
// Takes the caller's DB handle so background workers query through their
// injected connection.
func CountOnDutyUsers(ctx context.Context, db *gorm.DB, site Site) (int, error) {
	var count int64
	err := db.WithContext(ctx).Model(&User{}).
		Where("site = ? AND duty_status = ? AND is_active = ?", site, DutyStatusOnDuty, true).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// EnsureAdminUser creates the bootstrap admin account (admin/admin) when no
// admin exists yet. Safe to call on every startup.
func EnsureAdminUser(ctx context.Context) error {
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&User{}).Where("is_admin = ?", true).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := utils.HashPassword("admin")
	if err != nil {
		return err
	}
	admin := User{
		Username:   "admin",
		Name:       "Administrator",
		Password:   string(hashedPassword),
		IsActive:   utils.NewTrue(),
		IsAdmin:    utils.NewTrue(),
		Role:       UserRoleSupervisor,
		DutyStatus: DutyStatusOffDuty,
		Site:       SitePqpHt,
	}
	return db.WithContext(ctx).Create(&admin).Error
}
