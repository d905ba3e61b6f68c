package permission

import "time"

// Grant is one row of the permission store: a principal holds a permission
// kind, optionally scoped to a single target resource. TargetUUID is the
// empty string for model-wide grants so the uniqueness constraint covers
// both shapes with one index.
type Grant struct {
	ID            int64     `gorm:"column:id;primaryKey"`
	Permission    string    `gorm:"column:permission;not null;uniqueIndex:idx_grant_triple,priority:1"`
	PrincipalType string    `gorm:"column:principal_type;not null;uniqueIndex:idx_grant_triple,priority:2"`
	PrincipalID   string    `gorm:"column:principal_id;not null;uniqueIndex:idx_grant_triple,priority:3"`
	TargetUUID    string    `gorm:"column:target_uuid;not null;default:'';uniqueIndex:idx_grant_triple,priority:4"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (Grant) TableName() string {
	return "permission_grants"
}

type Group struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Group) TableName() string {
	return "groups"
}

type GroupMember struct {
	ID       int64  `gorm:"column:id;primaryKey"`
	GroupID  int64  `gorm:"column:group_id;not null;uniqueIndex:idx_group_member,priority:1"`
	UserUUID string `gorm:"column:user_uuid;not null;uniqueIndex:idx_group_member,priority:2"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
