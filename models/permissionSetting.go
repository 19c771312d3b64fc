package models

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/pqpsoft/tracker_backend/config"
	"gorm.io/gorm"
)

const rolePermissionsKey = "role_permissions"

// PermissionMap is role → action → allowed.
type PermissionMap map[UserRole]map[string]bool

// DefaultPermissions mirrors the shipped role matrix: supervisors manage
// everything, engineers create/update tasks and file reports.
func DefaultPermissions() PermissionMap {
	return PermissionMap{
		UserRoleSupervisor: {
			"sprint:create":   true,
			"sprint:update":   true,
			"sprint:delete":   true,
			"sprint:report":   true,
			"task:create":     true,
			"task:update":     true,
			"task:assign":     true,
			"task:delete":     true,
			"resource:manage": true,
		},
		UserRoleEngineer: {
			"sprint:create":   false,
			"sprint:update":   false,
			"sprint:delete":   false,
			"sprint:report":   true,
			"task:create":     true,
			"task:update":     true,
			"task:assign":     false,
			"task:delete":     false,
			"resource:manage": false,
		},
	}
}

// PermissionSetting persists one settings blob per key.
type PermissionSetting struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Key       string    `gorm:"size:50;not null;unique" json:"key"`
	Value     []byte    `gorm:"type:json" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PermissionStore holds the in-memory permission map. It is an explicit
// value injected into handlers, loaded at boot and reloaded after every
// admin write; there is no module-level mutable singleton.
type PermissionStore struct {
	mu          sync.RWMutex
	permissions PermissionMap
}

func NewPermissionStore() *PermissionStore {
	return &PermissionStore{permissions: DefaultPermissions()}
}

// Load reads the persisted map, seeding the defaults on first boot.
func (s *PermissionStore) Load(ctx context.Context) error {
	db := config.GetDB()
	var setting PermissionSetting
	err := db.WithContext(ctx).Where("`key` = ?", rolePermissionsKey).Take(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.save(ctx, DefaultPermissions())
	}
	if err != nil {
		return err
	}

	var permissions PermissionMap
	if err := json.Unmarshal(setting.Value, &permissions); err != nil {
		return err
	}

	s.mu.Lock()
	s.permissions = permissions
	s.mu.Unlock()
	return nil
}

// Reload is Load under its caller-facing name: invoked after admin writes.
func (s *PermissionStore) Reload(ctx context.Context) error {
	return s.Load(ctx)
}

// Can reports whether the role may perform the action. Unknown roles and
// actions are denied.
func (s *PermissionStore) Can(role UserRole, action string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	actions, ok := s.permissions[role]
	if !ok {
		return false
	}
	return actions[action]
}

// Snapshot returns a copy of the current map for the admin UI.
func (s *PermissionStore) Snapshot() PermissionMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make(PermissionMap, len(s.permissions))
	for role, actions := range s.permissions {
		copiedActions := make(map[string]bool, len(actions))
		for action, allowed := range actions {
			copiedActions[action] = allowed
		}
		copied[role] = copiedActions
	}
	return copied
}

// Update persists the new map and refreshes the in-memory copy.
func (s *PermissionStore) Update(ctx context.Context, permissions PermissionMap) error {
	if err := s.save(ctx, permissions); err != nil {
		return err
	}
	return s.Reload(ctx)
}

func (s *PermissionStore) save(ctx context.Context, permissions PermissionMap) error {
	value, err := json.Marshal(permissions)
	if err != nil {
		return err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var setting PermissionSetting
		err := tx.Where("`key` = ?", rolePermissionsKey).Take(&setting).Error
		switch {
		case err == nil:
			return tx.Model(&setting).Update("value", value).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			setting = PermissionSetting{Key: rolePermissionsKey, Value: value}
			return tx.Create(&setting).Error
		default:
			return err
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.permissions = permissions
	s.mu.Unlock()
	return nil
}
