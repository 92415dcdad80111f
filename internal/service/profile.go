package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/TomasGamarra/RappiFarma/internal/errs"
	"github.com/TomasGamarra/RappiFarma/internal/model"
	"github.com/TomasGamarra/RappiFarma/internal/store"
)

// ProfileService reads and edits the caller's profile document. The address
// saved here is the precondition for submitting a request.
type ProfileService struct {
	store store.Store
	log   *zap.Logger
}

// NewProfileService constructs ProfileService.
func NewProfileService(st store.Store, log *zap.Logger) *ProfileService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileService{store: st, log: log}
}

// GetProfile loads users/{uid}.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (model.User, error) {
	if userID == "" {
		return model.User{}, errs.ErrNotAuthenticated
	}
	doc, err := s.store.GetOne(ctx, store.UserPath(userID))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.User{}, errs.ErrProfileNotFound
		}
		return model.User{}, fmt.Errorf("get profile: %w", err)
	}
	var u model.User
	if err := doc.DataTo(&u); err != nil {
		return model.User{}, fmt.Errorf("decode profile: %w", err)
	}
	u.ID = doc.ID
	return u, nil
}

// SaveProfile merges the editable profile fields. A first write also stamps
// the document with the store's commit timestamp and the default role.
func (s *ProfileService) SaveProfile(ctx context.Context, userID string, u model.User) error {
	if userID == "" {
		return errs.ErrNotAuthenticated
	}

	fields := map[string]any{
		"nombre":    u.Nombre,
		"apellido":  u.Apellido,
		"dni":       u.DNI,
		"telefono":  u.Telefono,
		"direccion": u.Direccion,
	}
	if _, err := s.store.GetOne(ctx, store.UserPath(userID)); errors.Is(err, errs.ErrNotFound) {
		fields["role"] = model.RoleUsuario
		fields["createdAt"] = store.ServerTimestamp
	}

	if err := s.store.Batch().Merge(store.UserPath(userID), fields).Commit(ctx); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.log.Info("profile saved", zap.String("userId", userID))
	return nil
}

// listPharmacies returns every pharmacy-role account; this is the fan-out set
// at submission time and the inbox-cleanup set on accept.
func listPharmacies(ctx context.Context, st store.Store) ([]model.User, error) {
	docs, err := st.Query(ctx, store.UsersCollection, store.Where("role", model.RoleFarmacia))
	if err != nil {
		return nil, fmt.Errorf("list pharmacies: %w", err)
	}
	out := make([]model.User, 0, len(docs))
	for _, doc := range docs {
		var u model.User
		if err := doc.DataTo(&u); err != nil {
			return nil, fmt.Errorf("decode pharmacy %s: %w", doc.ID, err)
		}
		u.ID = doc.ID
		out = append(out, u)
	}
	return out, nil
}
