package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Service writes and removes objects in remote object storage.
type Service interface {
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
	DeletePrefix(ctx context.Context, bucket, prefix string) error
}

// AvatarMirror copies user avatars to a bucket under <prefix>/<userID>/.
type AvatarMirror struct {
	svc    Service
	bucket string
	prefix string
}

func NewAvatarMirror(svc Service, bucket, keyPrefix string) *AvatarMirror {
	return &AvatarMirror{
		svc:    svc,
		bucket: bucket,
		prefix: strings.Trim(keyPrefix, "/"),
	}
}

// Put uploads the avatar of userID and returns its object location.
func (m *AvatarMirror) Put(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	key := m.AvatarKey(userID)
	if err := m.svc.PutObject(ctx, m.bucket, key, data, contentType); err != nil {
		return "", fmt.Errorf("mirror avatar: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", m.bucket, key), nil
}

// Remove deletes every mirrored object of userID.
func (m *AvatarMirror) Remove(ctx context.Context, userID string) error {
	if err := m.svc.DeletePrefix(ctx, m.bucket, m.userPrefix(userID)); err != nil {
		return fmt.Errorf("remove mirrored avatar: %w", err)
	}
	return nil
}

func (m *AvatarMirror) AvatarKey(userID string) string {
	return path.Join(m.prefix, userID, "avatar")
}

func (m *AvatarMirror) userPrefix(userID string) string {
	return path.Join(m.prefix, userID) + "/"
}
