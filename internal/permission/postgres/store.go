package postgres

import (
	"context"
	"fmt"
	"time"

	permdm "github.com/frahmantamala/account-service/internal/core/datamodel/permission"
	"github.com/frahmantamala/account-service/internal/permission"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GrantStore implements permission.Store on GORM. Idempotent inserts lean
// on the unique (permission, principal_type, principal_id, target_uuid)
// index via ON CONFLICT DO NOTHING, so concurrent grants of the same
// triple can never produce duplicates.
type GrantStore struct {
	db *gorm.DB
}

func NewGrantStore(db *gorm.DB) *GrantStore {
	return &GrantStore{db: db}
}

// WithTx rebinds the store to a running transaction.
func (s *GrantStore) WithTx(tx *gorm.DB) permission.Store {
	return &GrantStore{db: tx}
}

func (s *GrantStore) Insert(ctx context.Context, g permission.Grant) error {
	row := permdm.Grant{
		Permission:    string(g.Kind),
		PrincipalType: string(g.Principal.Type),
		PrincipalID:   g.Principal.ID,
		TargetUUID:    g.Target,
		CreatedAt:     time.Now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "permission"},
				{Name: "principal_type"},
				{Name: "principal_id"},
				{Name: "target_uuid"},
			},
			DoNothing: true,
		}).
		Create(&row).Error
}

func (s *GrantStore) Remove(ctx context.Context, g permission.Grant) error {
	return s.db.WithContext(ctx).
		Where("permission = ? AND principal_type = ? AND principal_id = ? AND target_uuid = ?",
			string(g.Kind), string(g.Principal.Type), g.Principal.ID, g.Target).
		Delete(&permdm.Grant{}).Error
}

func (s *GrantStore) HasAny(ctx context.Context, principals []permission.GrantPrincipal, kind permission.Kind, target string) (bool, error) {
	if len(principals) == 0 {
		return false, nil
	}

	q := s.db.WithContext(ctx).Model(&permdm.Grant{}).
		Where("permission = ? AND target_uuid = ?", string(kind), target)

	session := s.db.Session(&gorm.Session{NewDB: true})
	cond := session.Where("principal_type = ? AND principal_id = ?",
		string(principals[0].Type), principals[0].ID)
	for _, p := range principals[1:] {
		cond = cond.Or("principal_type = ? AND principal_id = ?", string(p.Type), p.ID)
	}
	q = q.Where(cond)

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("count grants: %w", err)
	}
	return count > 0, nil
}

func (s *GrantStore) Kinds(ctx context.Context, principal permission.GrantPrincipal, target string) ([]permission.Kind, error) {
	var rows []string
	err := s.db.WithContext(ctx).Model(&permdm.Grant{}).
		Where("principal_type = ? AND principal_id = ? AND target_uuid = ?",
			string(principal.Type), principal.ID, target).
		Order("permission").
		Pluck("permission", &rows).Error
	if err != nil {
		return nil, fmt.Errorf("list grant kinds: %w", err)
	}

	kinds := make([]permission.Kind, 0, len(rows))
	for _, r := range rows {
		kinds = append(kinds, permission.Kind(r))
	}
	return kinds, nil
}

func (s *GrantStore) PurgeTarget(ctx context.Context, target string) error {
	if target == "" {
		// never wipe the model-wide scope by accident
		return nil
	}
	return s.db.WithContext(ctx).
		Where("target_uuid = ?", target).
		Delete(&permdm.Grant{}).Error
}

func (s *GrantStore) GroupNamesFor(ctx context.Context, userUUID string) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&permdm.GroupMember{}).
		Joins("JOIN groups ON groups.id = group_members.group_id").
		Where("group_members.user_uuid = ?", userUUID).
		Order("groups.name").
		Pluck("groups.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	return names, nil
}

func (s *GrantStore) AddToGroup(ctx context.Context, group, userUUID string) error {
	grp, err := s.groupByName(ctx, group)
	if err != nil {
		return err
	}
	member := permdm.GroupMember{GroupID: grp.ID, UserUUID: userUUID}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_uuid"}},
			DoNothing: true,
		}).
		Create(&member).Error
}

func (s *GrantStore) RemoveFromGroup(ctx context.Context, group, userUUID string) error {
	grp, err := s.groupByName(ctx, group)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	return s.db.WithContext(ctx).
		Where("group_id = ? AND user_uuid = ?", grp.ID, userUUID).
		Delete(&permdm.GroupMember{}).Error
}

func (s *GrantStore) EnsureGroup(ctx context.Context, name string) error {
	row := permdm.Group{Name: name, CreatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(&row).Error
}

func (s *GrantStore) groupByName(ctx context.Context, name string) (*permdm.Group, error) {
	var grp permdm.Group
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&grp).Error; err != nil {
		return nil, err
	}
	return &grp, nil
}
