package service

import (
	"context"
	"sort"

	"mobilepush/internal/model"
)

// =============================================================================
// IN-MEMORY TOKEN STORE
// =============================================================================
//
// fakeTokenStore behaves like the push_device_tokens table: one record per
// (token, kind), owned by one user. It implements DeviceTokenRepository.

type fakeTokenStore struct {
	records map[tokenKey]*model.DeviceToken
	nextID  int64

	deleteCalls int
	updateCalls int
}

type tokenKey struct {
	token string
	kind  model.PushKind
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{records: map[tokenKey]*model.DeviceToken{}}
}

func (s *fakeTokenStore) add(userID int64, token string, kind model.PushKind) {
	s.nextID++
	s.records[tokenKey{token, kind}] = &model.DeviceToken{ID: s.nextID, UserID: userID, Kind: kind, Token: token}
}

func (s *fakeTokenStore) Register(ctx context.Context, userID int64, token string, kind model.PushKind, iosAppID *string) (bool, error) {
	key := tokenKey{token, kind}
	if rec, ok := s.records[key]; ok {
		if rec.UserID != userID {
			s.deleteCalls++
			delete(s.records, key)
		} else {
			return false, nil
		}
	}
	s.nextID++
	s.records[key] = &model.DeviceToken{ID: s.nextID, UserID: userID, Kind: kind, Token: token, IOSAppID: iosAppID}
	return true, nil
}

func (s *fakeTokenStore) ListByUser(ctx context.Context, userID int64, kind model.PushKind) ([]model.DeviceToken, error) {
	var out []model.DeviceToken
	for _, rec := range s.records {
		if rec.UserID == userID && rec.Kind == kind {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeTokenStore) CountByUser(ctx context.Context, userID int64, kind *model.PushKind) (int, error) {
	n := 0
	for _, rec := range s.records {
		if rec.UserID == userID && (kind == nil || rec.Kind == *kind) {
			n++
		}
	}
	return n, nil
}

func (s *fakeTokenStore) Exists(ctx context.Context, token string, kind model.PushKind) (bool, error) {
	_, ok := s.records[tokenKey{token, kind}]
	return ok, nil
}

func (s *fakeTokenStore) UpdateToken(ctx context.Context, oldToken, newToken string, kind model.PushKind) error {
	s.updateCalls++
	rec, ok := s.records[tokenKey{oldToken, kind}]
	if !ok {
		return nil
	}
	delete(s.records, tokenKey{oldToken, kind})
	rec.Token = newToken
	s.records[tokenKey{newToken, kind}] = rec
	return nil
}

func (s *fakeTokenStore) Delete(ctx context.Context, token string, kind model.PushKind) error {
	s.deleteCalls++
	key := tokenKey{token, kind}
	if _, ok := s.records[key]; !ok {
		return model.ErrTokenNotFound
	}
	delete(s.records, key)
	return nil
}

func (s *fakeTokenStore) mutations() int {
	return s.deleteCalls + s.updateCalls
}
