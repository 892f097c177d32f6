package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"github.com/avetra/identity/internal/domain/repository"
	"github.com/avetra/identity/internal/domain/user"
	"github.com/avetra/identity/pkg/helpers"
)

// GetProfile loads a user by id.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	return s.loadUser(ctx, userID)
}

// UpdateProfile renames the user. Empty inputs keep the current value.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, firstName, lastName string) (*user.User, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if firstName == "" {
		firstName = u.FirstName()
	}
	if lastName == "" {
		lastName = u.LastName()
	}
	u.Rename(firstName, lastName)
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}
	s.indexUser(ctx, u)
	return u, nil
}

// UploadAvatar stores the image in GCS and records its public URL on the
// user.
func (s *Service) UploadAvatar(ctx context.Context, userID uuid.UUID, r io.Reader, filename, contentType string) (string, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return "", errors.New("gcs not configured")
	}
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", userID.String(), uuid.NewString()+ext))
	url, err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return "", err
	}
	u.ChangeImage(url)
	if err := s.save(ctx, u); err != nil {
		return "", err
	}
	s.indexUser(ctx, u)
	return url, nil
}

// ConvertAnonymous upgrades an anonymous account to a regular one.
func (s *Service) ConvertAnonymous(ctx context.Context, userID uuid.UUID, email string) (*user.User, error) {
	em, err := user.NewEmail(email)
	if err != nil {
		return nil, err
	}
	exists, err := s.Users.EmailExists(ctx, em, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := u.ConvertToRegular(em.String()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}
	s.indexUser(ctx, u)
	return u, nil
}

// LinkOAuthIdentity attaches a federated identity to the user. The
// provider+providerUserID pair must be globally unique; the repository's
// unique index backs that up.
func (s *Service) LinkOAuthIdentity(ctx context.Context, userID uuid.UUID, provider user.Provider, providerUserID, email, name, accessToken, refreshToken string, tokenExpiresAt *time.Time, scopes []string) (*user.Identity, error) {
	if _, err := s.Users.FindByProviderIdentity(ctx, provider, providerUserID); err == nil {
		return nil, repository.ErrConflict
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ident, err := u.CreateIdentity(uuid.New(), provider, providerUserID, user.IdentityOptions{
		Email:          email,
		Name:           name,
		Scopes:         scopes,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: tokenExpiresAt,
	})
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}
	return ident, nil
}

// UnlinkIdentity logically removes one identity; the aggregate refuses to
// drop the last one.
func (s *Service) UnlinkIdentity(ctx context.Context, userID, identityID uuid.UUID) error {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := u.UnlinkIdentity(identityID); err != nil {
		return err
	}
	return s.save(ctx, u)
}

func (s *Service) indexUser(ctx context.Context, u *user.User) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return
	}
	doc := map[string]any{
		"id":          u.ID().String(),
		"email":       u.Email().String(),
		"first_name":  u.FirstName(),
		"last_name":   u.LastName(),
		"image":       u.Image(),
		"is_active":   u.IsActive(),
		"banned":      u.IsBanned(),
		"is_verified": u.IsEmailVerified(),
		"created_at":  u.CreatedAt().Format(time.RFC3339Nano),
		"updated_at":  u.UpdatedAt().Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID().String(), Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID()).Warn("es index failed")
		}
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID()).Warn("es index response error")
	}
}

// SearchUsers performs a multi_match query over email and name fields.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "first_name", "last_name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.ESUsersIndex),
		s.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
